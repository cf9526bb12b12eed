package templating

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEngineUnavailable is returned when the engine runtime cannot be loaded.
var ErrEngineUnavailable = errors.New("rendering engine unavailable")

// TemplateNotFoundError indicates that no root contains the requested name.
type TemplateNotFoundError struct {
	Name  string
	Roots []string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template not found: %s (roots: %s)", e.Name, strings.Join(e.Roots, ", "))
}

// ParseError indicates a template file that failed to parse.
type ParseError struct {
	Name  string
	Path  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse template %q (%s): %v", e.Name, e.Path, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }
