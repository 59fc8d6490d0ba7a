package session

import "errors"

var (
	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")

	// ErrInvalidOwner is returned by Create when the owner identifier is blank.
	ErrInvalidOwner = errors.New("invalid owner id")
)
