package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStorageFailure marks transient backend failures; callers may retry.
	ErrStorageFailure = errors.New("storage failure")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func storageFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageFailure, op, err)
}
