package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTerminalState    = errors.New("job already in terminal state")
	ErrInvalidJobType   = errors.New("invalid job type")
	ErrInvalidInput     = errors.New("invalid job input")
	ErrJobCancelled     = errors.New("job cancelled")
	ErrNotPending       = errors.New("job is not pending")
)
