package listing

import (
	"strings"

	"github.com/pkg/errors"
)

// Delimiter is an optional single-byte separator used to collapse keys into
// common prefixes. The zero value is disabled.
type Delimiter struct {
	char    byte
	enabled bool
}

// NoDelimiter disables prefix collapsing.
var NoDelimiter = Delimiter{}

// NewDelimiter returns an enabled delimiter.
func NewDelimiter(c byte) Delimiter {
	return Delimiter{char: c, enabled: true}
}

// ParseDelimiter accepts "" (disabled) or exactly one byte.
func ParseDelimiter(s string) (Delimiter, error) {
	switch len(s) {
	case 0:
		return NoDelimiter, nil
	case 1:
		return NewDelimiter(s[0]), nil
	default:
		return NoDelimiter, errors.Errorf("delimiter must be a single byte, got %q", s)
	}
}

// Enabled reports whether prefix collapsing is on.
func (d Delimiter) Enabled() bool {
	return d.enabled
}

// String returns the delimiter as a string, empty when disabled.
func (d Delimiter) String() string {
	if !d.enabled {
		return ""
	}
	return string([]byte{d.char})
}

// CommonPrefix returns key through its first delimiter occurrence, inclusive.
// ok is false when the delimiter is disabled or absent from key.
func (d Delimiter) CommonPrefix(key string) (prefix string, ok bool) {
	if !d.enabled {
		return "", false
	}
	i := strings.IndexByte(key, d.char)
	if i < 0 {
		return "", false
	}
	return key[:i+1], true
}
