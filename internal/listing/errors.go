package listing

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvariant marks a logic defect in the listing algorithm, as opposed to a
// runtime condition. Match it with errors.Is.
var ErrInvariant = errors.New("listing invariant violated")

// InvariantError describes where an invariant broke.
type InvariantError struct {
	Op        string // operation that detected the violation
	Detail    string
	Collected int // items collected when it was detected
	LastItem  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s: %s (collected %d, last %q)",
		e.Op, ErrInvariant, e.Detail, e.Collected, e.LastItem)
}

// Is makes errors.Is(err, ErrInvariant) hold.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}
