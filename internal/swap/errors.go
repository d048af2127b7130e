package swap

import "errors"

// NoResultMessage is reported when the model answers without an image.
const NoResultMessage = "no result produced"

// ErrMissingAPIKey is returned by every Swap on a client built without credentials.
var ErrMissingAPIKey = errors.New("API key must be set when using the Gemini API")

// GenerationError means the service answered but no usable image came back,
// or the request could not be formed from the given payloads.
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failure reaching the service or an API-level error.
// Error() is the underlying message, unchanged.
type TransportError struct {
	// Kind is the classified failure category (invalid, quota, network_error, unknown).
	Kind string
	Err  error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
