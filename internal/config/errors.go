package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is wrapped by every error that comes from an unusable
	// configuration layer.
	ErrConfig = errors.New("invalid configuration")

	// ErrAuth is returned when a provider call needs an API token and none
	// was configured.
	ErrAuth = errors.New("no API token was provided, set one with --token, CDDNS_VERIFY_TOKEN or [verify] token")
)

// Error names the configuration source that could not be used.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrConfig, e.Err}
}

func newError(source string, err error) *Error {
	return &Error{Source: source, Err: err}
}
