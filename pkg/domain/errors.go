package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrTypeMismatch is the sentinel matched by TypeMismatchError.
var ErrTypeMismatch = errors.New("unit kind mismatch")

// TypeMismatchError is returned when a token resolves but is not of the
// expected kind.
type TypeMismatchError struct {
	ID   string
	Want ActorKind
	Got  ActorKind
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("token %s is a %s, expected %s", e.ID, e.Got, e.Want)
}

// Is matches ErrTypeMismatch.
func (e TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
