package store

import (
	"regexp"
	"strings"
)

// ConstraintError reports a violated database constraint, preserving the
// constraint name so callers can turn it into a user-facing message.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return "constraint violated: " + e.Constraint
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// constraintRe pulls the constraint name out of the driver's message, e.g.
// "constraint failed: UNIQUE constraint failed: series.name (2067)".
var constraintRe = regexp.MustCompile(`constraint failed: ([^(]+?)\s*\(\d+\)`)

// wrapConstraint converts a driver constraint violation into a
// *ConstraintError; other errors pass through unchanged.
func wrapConstraint(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.Contains(msg, "constraint") {
		return err
	}
	name := "unknown"
	if m := constraintRe.FindStringSubmatch(msg); m != nil {
		name = strings.TrimSpace(m[1])
	}
	return &ConstraintError{Constraint: name, Err: err}
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
