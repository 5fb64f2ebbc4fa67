package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied indicates the caller does not own the requested store.
	ErrAccessDenied = errors.New("access denied")
	// ErrFeatureUnavailable indicates an upstream capability is not enabled
	// for the merchant (ledger or dispute endpoints answering 404/403).
	ErrFeatureUnavailable = errors.New("feature unavailable")
	// ErrUpstream indicates a real upstream failure, as opposed to an
	// expected unavailability.
	ErrUpstream = errors.New("upstream failure")
)
