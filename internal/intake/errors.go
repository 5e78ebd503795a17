package intake

import (
	"errors"
	"fmt"
)

// ErrEmailRequired is returned when a save or submit carries no usable email.
var ErrEmailRequired = errors.New("email is required")

// PersistenceError wraps a failed row lookup or write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s submission: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
