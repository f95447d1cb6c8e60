package domain

import "errors"

var (
	// ErrValidation marks malformed input rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrDispatch marks a build worker that could not be launched.
	ErrDispatch = errors.New("dispatch failed")
)
