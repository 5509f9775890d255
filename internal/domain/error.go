package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrExpiredSubscription = errors.New("subscription has expired")
	ErrAlreadyFrozen       = errors.New("subscription is already frozen")
	ErrNotFrozen           = errors.New("subscription is not frozen")

	// Configuration errors
	ErrUnknownPlan     = errors.New("unknown plan token")
	ErrMissingPrice    = errors.New("no price configured for duration")
	ErrInvalidDiscount = errors.New("discount must be in [0,1)")
	ErrInvalidDuration = errors.New("duration not allowed")

	// Storage errors
	ErrMalformedDocument  = errors.New("malformed document")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrLockNotAcquired    = errors.New("lock not acquired")
	ErrConcurrentUpdate   = errors.New("concurrent update, retry")
)
