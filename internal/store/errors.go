package store

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicate reports a unique name/email collision.
	ErrDuplicate = errors.New("already exists")
	// ErrInUse reports a delete blocked by rows that still reference the target.
	ErrInUse = errors.New("still in use")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
