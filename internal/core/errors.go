package core

import (
	"errors"

	"squadcore/pkg/domain"
)

type (
	ErrNotFound       = domain.ErrNotFound
	TypeMismatchError = domain.TypeMismatchError
)

// ErrTypeMismatch matches every TypeMismatchError.
var ErrTypeMismatch = domain.ErrTypeMismatch

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool { return domain.IsNotFound(err) }

func notFound(entity EntityType, id string) error {
	return ErrNotFound{Entity: entity, ID: id}
}

func domainUnresolvable(err error) bool {
	return IsNotFound(err) || errors.Is(err, ErrTypeMismatch)
}
