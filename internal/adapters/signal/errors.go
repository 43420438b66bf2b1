package signal

import "errors"

// Failure kinds. Every one of them means the caller falls back to the
// rule-based report.
var (
	ErrNoEndpoint  = errors.New("signal endpoint not configured")
	ErrUnavailable = errors.New("signal unavailable")
	ErrTimeout     = errors.New("signal timeout")
	ErrStatus      = errors.New("signal bad status")
	ErrDecode      = errors.New("signal decode failed")
)

// Kinds lists the failure kinds for metric labelling.
var Kinds = []error{ErrNoEndpoint, ErrTimeout, ErrUnavailable, ErrStatus, ErrDecode}
