package config

import "errors"

// Errors returned by configuration operations.
var (
	// ErrFileNotFound indicates an explicitly named config file doesn't exist.
	ErrFileNotFound = errors.New("config file not found")

	// ErrValidationFailed indicates a setting holds an unusable value.
	ErrValidationFailed = errors.New("validation failed")

	// ErrTypeMismatch indicates a layer set a value of the wrong type.
	ErrTypeMismatch = errors.New("type mismatch")
)
