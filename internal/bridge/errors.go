package bridge

import "errors"

// Domain-specific errors for bridge operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidTopic is returned for command topics that do not match
	// the expected scheme.
	ErrInvalidTopic = errors.New("bridge: invalid topic format")

	// ErrUnknownEntity is returned for commands addressed to an entity
	// the registry has never materialised.
	ErrUnknownEntity = errors.New("bridge: unknown entity")

	// ErrUnknownCommand is returned for unrecognised command names, or
	// commands sent to an entity of the wrong type.
	ErrUnknownCommand = errors.New("bridge: unknown command")

	// ErrMissingOption is returned when select_option carries no option.
	ErrMissingOption = errors.New("bridge: select_option requires an option")

	// ErrMalformedCommand is returned for payloads that cannot be parsed.
	ErrMalformedCommand = errors.New("bridge: malformed command payload")
)
