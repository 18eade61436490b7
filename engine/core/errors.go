package core

import (
	"errors"
)

var (
	// ErrInvalidArgument signals an empty location, a missing callback set or
	// any other argument the caller must fix before retrying.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound signals a package or asset descriptor that is not registered.
	ErrNotFound = errors.New("not found")
	// ErrNotImplemented signals a declared operation without behavior.
	ErrNotImplemented = errors.New("not implemented")
	// ErrOperationFailed signals an asynchronous operation that completed with
	// a non-success status.
	ErrOperationFailed = errors.New("operation failed")
	// ErrAlreadyInitialized signals a second initialization of a component that
	// only supports one.
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrUnknown            = errors.New("unknown")
)
