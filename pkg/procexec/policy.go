package procexec

import (
	"errors"
	"fmt"
)

// ErrToolFailed is returned by a strict policy when a tool run fails.
var ErrToolFailed = errors.New("external tool failed")

// ErrUnknownPolicy is returned by ParsePolicy for unrecognized names.
var ErrUnknownPolicy = errors.New("unknown failure policy")

// FailurePolicy decides what a failed tool run means to the caller. Callers
// that can substitute a neutral value (an empty file list, a zero count) ask
// the policy first and only degrade when it returns nil.
type FailurePolicy string

const (
	// Degrade logs the failure and lets the caller substitute its neutral value.
	Degrade FailurePolicy = "degrade"
	// Strict turns every failed run into an error.
	Strict FailurePolicy = "strict"
)

// ParsePolicy converts a configured name into a FailurePolicy.
func ParsePolicy(name string) (FailurePolicy, error) {
	switch FailurePolicy(name) {
	case Degrade, Strict:
		return FailurePolicy(name), nil
	case "":
		return Degrade, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// Coerce returns nil when res may be degraded to a neutral value and an
// error wrapping ErrToolFailed when it must be escalated.
func (p FailurePolicy) Coerce(spec Spec, res Result) error {
	if res.OK() || p != Strict {
		return nil
	}

	return fmt.Errorf("%w: %s (%s): %s", ErrToolFailed, spec.Tool, res.Outcome, res.Excerpt(excerptLen))
}

const excerptLen = 300
