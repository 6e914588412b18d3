package domain

import "errors"

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrTemplate      = errors.New("template error")
	ErrChannelConfig = errors.New("channel config error")

	// ErrSuppressed is returned by producers when the target user's
	// preferences disable the notification source.
	ErrSuppressed = errors.New("notification suppressed by user setting")

	ErrAlreadyRunning = errors.New("dispatcher already running")
)
