package model

import "errors"

var (
	// ErrFileNotFound is returned when a stored file is not found.
	ErrFileNotFound = errors.New("file not found")

	// ErrStorageNotConfigured is returned when the selected storage backend
	// is missing required credentials or endpoints.
	ErrStorageNotConfigured = errors.New("storage backend not configured")

	// ErrAPIKeyRequired is returned when the generation API key is missing.
	ErrAPIKeyRequired = errors.New("generation API key is required")
)
