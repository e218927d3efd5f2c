package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a vendor call failure structurally, replacing
// substring matching on error messages.
type ErrorKind int

const (
	// KindRateLimited is a 429-equivalent or a pre-call quota denial.
	// Triggers same-vendor key rotation before cross-vendor fallback.
	KindRateLimited ErrorKind = iota
	// KindVendor is a malformed or missing response. Skips remaining keys
	// for the model tier and falls through to the next tier immediately.
	KindVendor
	// KindNetwork is a transport-level failure (timeout, connection reset).
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindVendor:
		return "vendor_error"
	case KindNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// CallError is a classified vendor call failure.
type CallError struct {
	Kind    ErrorKind
	Vendor  Vendor
	Model   string
	Status  int
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s %s (%s): %s", e.Vendor, e.Model, e.Kind, e.Message)
}

// ErrAllKeysExhausted distinguishes "every rotating key hit its daily cap"
// from ordinary vendor failure.
var ErrAllKeysExhausted = errors.New("all api keys exhausted for today")

// ErrNoVendorAvailable means every configured vendor failed or no vendor has
// credentials.
var ErrNoVendorAvailable = errors.New("no ai vendor available")

// IsRateLimited reports whether err is a rate-limit-classified failure.
func IsRateLimited(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Kind == KindRateLimited
}
