package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint was violated.
	ErrConflict = errors.New("repository: conflict")
	// ErrTerminal indicates a deployment already reached a terminal status.
	ErrTerminal = errors.New("repository: deployment is terminal")
)
