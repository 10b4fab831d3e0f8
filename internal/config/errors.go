package config

import "errors"

// Sentinel errors returned by [StructuredConfig.validate] when a required
// configuration section is missing or inconsistent. Matched with [errors.Is].
var (
	// ErrInvalidStorageConfigs is returned when the database DSN is empty.
	ErrInvalidStorageConfigs = errors.New("invalid storage configs")

	// ErrInvalidServerConfigs is returned when no HTTP listen address is set.
	ErrInvalidServerConfigs = errors.New("invalid server configs")

	// ErrInvalidAuthConfigs is returned when the token sign key is empty:
	// without it no incoming bearer token can be verified.
	ErrInvalidAuthConfigs = errors.New("invalid auth configs")
)
