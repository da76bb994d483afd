package drift

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when no access token is available or the
// provider rejects the one presented. Commands catch it and tell the user to
// log in again.
var ErrNotAuthenticated = errors.New("not authenticated")

// ConfigError reports a problem loading a config file, such as a missing
// file or a manifest without the expected tool table. It is distinct from a
// validation failure, which is always an *InvalidFieldValueError.
type ConfigError struct {
	Path string
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Msg)
	}

	return e.Msg
}

// NotFound reports whether the error is caused by a missing config file
// rather than a malformed one.
func (e *ConfigError) NotFound() bool {
	return e.Msg == errConfigNotFound
}

const errConfigNotFound = "config file not found"

// InvalidFieldValueError reports a config field whose value does not satisfy
// its declared type.
type InvalidFieldValueError struct {
	// File is the name of the originating config file, if any
	File string
	// Field is the dotted path of the offending field
	Field string
	// Expected describes the declared type
	Expected string
	// Value is the offending value
	Value any
}

func (e *InvalidFieldValueError) Error() string {
	msg := fmt.Sprintf("invalid value for %s: expected %s, got %v of type %T", e.Field, e.Expected, e.Value, e.Value)

	if e.File != "" {
		return fmt.Sprintf("invalid %s: %s", e.File, msg)
	}

	return msg
}

// APIError is a non-2xx response from the provider. Detail carries the
// response body's "detail" field when present, else the raw body text.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Detail)
}
