package fields

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Common field-selection errors.
var (
	// ErrSyntax indicates a malformed fields expression.
	ErrSyntax = errors.New("fields syntax error")

	// ErrValidation indicates a well-formed expression with invalid transformations.
	ErrValidation = errors.New("fields validation error")

	// ErrUnknownTransformer indicates a transformer name that is not registered.
	ErrUnknownTransformer = errors.New("unknown transformer")

	// ErrDuplicateTransformer indicates the same transformer applied twice to one field.
	ErrDuplicateTransformer = errors.New("duplicate transformer")

	// ErrInvalidArguments indicates transformer arguments rejected by its validator.
	ErrInvalidArguments = errors.New("invalid transformer arguments")
)

// SyntaxError describes a structural problem in a fields expression.
type SyntaxError struct {
	// Input is the raw expression.
	Input string

	// Pos is the byte offset of the offending token.
	Pos int

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("fields syntax error at position %d in %q: %s", e.Pos, e.Input, e.Message)
}

// Is checks if the error matches the target.
func (e *SyntaxError) Is(target error) bool {
	if target == ErrSyntax {
		return true
	}
	_, ok := target.(*SyntaxError)
	return ok
}

func newSyntaxError(input string, pos int, message string) *SyntaxError {
	return &SyntaxError{Input: input, Pos: pos, Message: message}
}

// ValidationError collects every transformation problem found while
// materializing a fields tree.
type ValidationError struct {
	problems *multierror.Error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid fields expression: " + e.problems.Error()
}

// Unwrap exposes the collected problems to errors.Is and errors.As.
func (e *ValidationError) Unwrap() error {
	return e.problems.Unwrap()
}

// Is checks if the error matches the target.
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	_, ok := target.(*ValidationError)
	return ok
}

// Problems returns the individual problems in discovery order.
func (e *ValidationError) Problems() []error {
	return e.problems.WrappedErrors()
}

// problemList accumulates validation problems.
type problemList struct {
	errs *multierror.Error
}

func (l *problemList) add(err error) {
	l.errs = multierror.Append(l.errs, err)
}

func (l *problemList) err() error {
	if l.errs == nil || len(l.errs.Errors) == 0 {
		return nil
	}
	l.errs.ErrorFormat = joinProblems
	return &ValidationError{problems: l.errs}
}

func joinProblems(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
