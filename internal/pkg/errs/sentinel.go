package errs

import "errors"

// Sentinel errors shared across the cache, lock and order pipelines.
var (
	// Cache errors
	ErrNotFound = errors.New("entity not found")

	// Lock errors
	ErrLockUnavailable = errors.New("lock unavailable")

	// Order admission errors (terminal, surfaced to the submitter)
	ErrOutOfStock     = errors.New("out of stock")
	ErrDuplicateOrder = errors.New("duplicate order")

	// Order log errors
	ErrCorruptEntry = errors.New("corrupt log entry")

	// Store errors
	ErrTransientStore = errors.New("transient store error")
)
