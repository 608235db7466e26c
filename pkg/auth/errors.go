package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to classify failures returned by this package.
var (
	// ErrConfiguration reports unusable credential material. It is returned
	// at construction time and is never retryable.
	ErrConfiguration = errors.New("auth: invalid configuration")

	// ErrAuthentication reports that the token endpoint rejected the exchange.
	ErrAuthentication = errors.New("auth: token exchange rejected")

	// ErrTransport reports that the token endpoint could not be reached.
	ErrTransport = errors.New("auth: token endpoint unreachable")
)

// ConfigurationError names the key-file field or setting that is unusable.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth: invalid configuration: %s", e.Field)
	}
	return fmt.Sprintf("auth: invalid configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// AuthenticationError carries the token endpoint's response when an
// exchange does not yield a token: a non-200 status, or a 200 whose body
// could not be used.
type AuthenticationError struct {
	StatusCode int
	Body       string
	Reason     string
}

func (e *AuthenticationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("auth: token endpoint returned %d (%s): %s", e.StatusCode, e.Reason, e.Body)
	}
	return fmt.Sprintf("auth: token endpoint returned %d: %s", e.StatusCode, e.Body)
}

func (e *AuthenticationError) Unwrap() error { return ErrAuthentication }

// TransportError wraps a network-level failure talking to the token endpoint.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("auth: token request to %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

func missingField(field string) error {
	return &ConfigurationError{Field: field, Err: errors.New("missing")}
}
