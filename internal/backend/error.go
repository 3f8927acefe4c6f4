package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrNotFound          = errors.New("backend not found in registry")
	ErrAlreadyRegistered = errors.New("backend is already registered in the registry")
	ErrNoModelLoaded     = errors.New("backend has no model loaded")
	ErrModelFileNotFound = errors.New("model file not found")
	ErrServerExited      = errors.New("server process exited")
)
