package backend

import "errors"

// Domain errors for the backend package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, backend.ErrAuth) {
//	    // prompt for re-authentication
//	}
var (
	// ErrAPI is returned for generic backend failures: network-level
	// errors (refused, timeout, DNS) and HTTP statuses >= 400 other
	// than the authentication statuses. Retried on the next poll tick.
	ErrAPI = errors.New("backend: api error")

	// ErrAuth is returned on HTTP 401/403 so callers can distinguish a
	// credential problem from the backend being down.
	ErrAuth = errors.New("backend: invalid authentication")

	// ErrMalformedResponse is returned when a success response carries
	// unparseable JSON or a list envelope of the wrong shape.
	ErrMalformedResponse = errors.New("backend: malformed response")

	// ErrValidation is returned for data the backend must never send
	// (a device with neither mac nor id) and for invalid write requests
	// (unknown select option, missing device id).
	ErrValidation = errors.New("backend: validation failed")
)
