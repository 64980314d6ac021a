package storage

import (
	"errors"
	"fmt"
)

// ErrStorage matches every error returned from the persistence boundary.
var ErrStorage = errors.New("storage failure")

// Error is a failed storage operation. It matches both ErrStorage and the driver cause.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}
