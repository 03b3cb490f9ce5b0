package model

import "errors"

// Error codes returned to remote callers.
const (
	FlagNotFoundErrorCode = "FLAG_NOT_FOUND"
	ParseErrorCode        = "PARSE_ERROR"
	GeneralErrorCode      = "GENERAL"
)

var (
	// ErrInvalidFlag marks a flag definition whose shape violates the configuration schema.
	ErrInvalidFlag = errors.New("invalid feature flag")

	// ErrInvalidRecurrence marks a bad time window or recurrence parameter.
	ErrInvalidRecurrence = errors.New("invalid recurrence")

	// ErrTargeting marks a bad targeting filter audience.
	ErrTargeting = errors.New("invalid targeting configuration")

	// ErrUnknownFilter is returned when a flag references a filter the host never registered.
	ErrUnknownFilter = errors.New("unknown feature filter")

	// ErrFlagNotFound is only used by remote adapters; the evaluation engine treats
	// unknown flags as disabled.
	ErrFlagNotFound = errors.New("feature flag not found")
)

// ErrorCode maps an evaluation error onto a remote error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrFlagNotFound):
		return FlagNotFoundErrorCode
	case errors.Is(err, ErrInvalidFlag), errors.Is(err, ErrInvalidRecurrence),
		errors.Is(err, ErrTargeting), errors.Is(err, ErrUnknownFilter):
		return ParseErrorCode
	default:
		return GeneralErrorCode
	}
}
