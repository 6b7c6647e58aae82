package listing

import "strings"

// Cursor is an exclusive lower bound used to resume a scan.
// The zero value admits every non-empty key.
type Cursor struct {
	key   string
	group bool
}

// After returns a cursor positioned strictly after key.
func After(key string) Cursor {
	return Cursor{key: key}
}

// AfterPrefix returns a cursor positioned after every key that starts with prefix.
func AfterPrefix(prefix string) Cursor {
	return Cursor{key: prefix, group: true}
}

// StartCursor converts a client marker into a cursor.
// With a delimiter enabled and present in the marker, the marker is cut after
// the first delimiter and the whole prefix group is skipped.
func StartCursor(marker string, d Delimiter) Cursor {
	if prefix, ok := d.CommonPrefix(marker); ok {
		return AfterPrefix(prefix)
	}
	return After(marker)
}

// Key returns the key or prefix the cursor is anchored on.
func (c Cursor) Key() string {
	return c.key
}

// IsGroup reports whether the cursor skips a whole prefix group.
func (c Cursor) IsGroup() bool {
	return c.group
}

// Admits reports whether key sorts strictly after the cursor.
func (c Cursor) Admits(key string) bool {
	if key <= c.key {
		return false
	}
	if c.group {
		return !strings.HasPrefix(key, c.key)
	}
	return true
}

// Seek returns the smallest key that could be admitted by the cursor.
// Keys equal to the returned bound may still need to be filtered with Admits.
// ok is false when no key can follow the cursor.
func (c Cursor) Seek() (from string, ok bool) {
	if !c.group {
		return c.key, true
	}
	return PrefixEnd(c.key)
}

// String renders the cursor for logs.
func (c Cursor) String() string {
	if c.group {
		return "after-group(" + c.key + ")"
	}
	return "after(" + c.key + ")"
}

// PrefixEnd returns the smallest byte string greater than every string that
// starts with prefix. ok is false when prefix is empty or made only of 0xff
// bytes, in which case no such bound exists.
func PrefixEnd(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}
