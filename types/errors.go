package types

import (
	"errors"
	"fmt"
)

// Error kinds; every rejection wraps exactly one of them.
var (
	ErrInvariantViolation     = errors.New("invariant violation")
	ErrLayoutViolation        = errors.New("layout violation")
	ErrMintViolation          = errors.New("mint violation")
	ErrAuthorizationViolation = errors.New("authorization violation")
	ErrDeployViolation        = errors.New("deploy violation")
)

// Violation returns error of given kind with formatted message.
func Violation(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind returns the error kind err wraps or nil if it's not a protocol violation.
func Kind(err error) error {
	for _, kind := range []error{ErrInvariantViolation, ErrLayoutViolation, ErrMintViolation, ErrAuthorizationViolation, ErrDeployViolation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
