package cascade

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyIdentifier is returned for an identifier with no characters.
	ErrEmptyIdentifier = errors.New("cascade: empty template identifier")

	// ErrInvalidIdentifier is returned for an identifier that could name a
	// file outside the search roots.
	ErrInvalidIdentifier = errors.New("cascade: invalid template identifier")

	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("cascade: template not found")

	// ErrOutsideRoots is returned by Reduce when no root is a prefix of the path.
	ErrOutsideRoots = errors.New("cascade: path is outside every search root")
)

// NotFoundError reports a resolution pass in which no candidate existed in
// any root.
type NotFoundError struct {
	Candidates []string
	Roots      []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template not found: tried [%s] in [%s]",
		strings.Join(e.Candidates, ", "), strings.Join(e.Roots, ", "))
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
