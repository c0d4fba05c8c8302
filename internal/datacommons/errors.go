package datacommons

import "errors"

// Client errors.
var (
	// ErrPlaceNotFound is returned when the service has no candidates
	// for a place name. This is a valid outcome, not a transport failure.
	ErrPlaceNotFound = errors.New("place not found")

	// ErrEmptyPlace is returned when a place name is empty.
	ErrEmptyPlace = errors.New("place name cannot be empty")

	// ErrNoDCIDs is returned when a lookup is attempted with no DCIDs.
	ErrNoDCIDs = errors.New("at least one DCID is required")

	// ErrMissingAPIKey is returned when the client has no API key configured.
	ErrMissingAPIKey = errors.New("Data Commons API key not configured")
)
