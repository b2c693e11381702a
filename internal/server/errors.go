package server

import "errors"

// Observer errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrMaxClientsReached    = errors.New("maximum clients reached")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidSubscription  = errors.New("invalid subscription")
	ErrListenerFailed       = errors.New("failed to create listener")
)
