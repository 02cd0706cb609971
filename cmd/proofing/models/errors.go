package models

import "errors"

// Sentinel errors shared across services and handlers.
// Services wrap these with context; handlers map them to HTTP statuses.
var (
	// ErrNotFound signals an unknown collection, client or selection
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized signals a missing ident, a non-editable client
	// status or a closed collection
	ErrNotAuthorized = errors.New("not authorized")

	// ErrValidationFailed signals rejected input, e.g. publishing without
	// a title or approving an empty selection
	ErrValidationFailed = errors.New("validation failed")

	// ErrNoIdentifyingInfo signals a client registration with neither
	// name nor email
	ErrNoIdentifyingInfo = errors.New("client needs a name or an email address")
)
