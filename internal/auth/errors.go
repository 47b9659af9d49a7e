package auth

import "errors"

// Operation failures are enumerated sentinels so callers can branch on the
// kind without parsing messages. All are validation or policy failures;
// none is transient.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrMissingIdentifier   = errors.New("missing identifier")
	ErrInvalidRegistration = errors.New("invalid registration data")
	ErrOTPNotRequested     = errors.New("passcode not requested for this identifier")
	ErrOTPExpired          = errors.New("passcode expired")
	ErrOTPMismatch         = errors.New("passcode incorrect")

	// ErrBusy rejects a mutating call while another is in flight.
	ErrBusy = errors.New("another auth operation is in flight")
)
