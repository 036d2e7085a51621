package domain

import "errors"

var (
	// ErrInvalidLevel is returned when a level string is not recognized.
	ErrInvalidLevel = errors.New("invalid level")
	// ErrModelUnavailable covers a missing model, a missing API key, a failed
	// completion call or a timed out one.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrMalformedModelOutput is returned when the completion text has no
	// usable {"level": ...} object.
	ErrMalformedModelOutput = errors.New("malformed model output")
	// ErrUIUnavailable is returned by UI adapters that cannot ask the user.
	ErrUIUnavailable = errors.New("ui unavailable")
	// ErrPersistence wraps failures to store the permission level.
	ErrPersistence = errors.New("persistence failure")
)
