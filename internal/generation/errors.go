package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when a provider request fails for any general reason
	ErrGenerationFailed = errors.New("model request failed")

	// ErrInvalidResponse is returned when the model response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the provider blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	// (rate limits, provider overload, timeouts)
	ErrTransientFailure = errors.New("transient error during model request")

	// ErrInvalidConfig is returned when model info or client configuration is invalid
	ErrInvalidConfig = errors.New("invalid model configuration")

	// ErrUnknownProvider is returned when no client is registered for a provider
	ErrUnknownProvider = errors.New("unknown model provider")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientFailure)
}

// TransientStatus reports whether an HTTP status from a provider indicates a
// temporary condition.
func TransientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}
