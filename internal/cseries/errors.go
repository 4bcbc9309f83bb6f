package cseries

import (
	"errors"
	"fmt"
	"time"

	"github.com/anthropic/cseries/internal/gitrepo"
	"github.com/anthropic/cseries/internal/patchwork"
	"github.com/anthropic/cseries/internal/store"
)

// InputError reports invalid user input: a bad name, a version out of
// range, conflicting version flags.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func inputf(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an absent series, version, branch or link.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func notFoundf(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a state clash: a dirty working tree, a branch-name
// collision, a row that already exists.
type ConflictError struct {
	Msg string
	Err error
}

func (e *ConflictError) Error() string { return e.Msg }

func (e *ConflictError) Unwrap() error { return e.Err }

func conflictf(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// TimeoutError reports that an autolink wait deadline expired without a
// unique match.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no unique match found within %s", e.After)
}

// Class names the error class used as the one-line message prefix.
func Class(err error) string {
	var (
		input    *InputError
		notFound *NotFoundError
		conflict *ConflictError
		pick     *gitrepo.ConflictError
		unique   *store.ConstraintError
		remote   *patchwork.RemoteError
		timeout  *TimeoutError
		schema   *store.SchemaError
	)
	switch {
	case errors.As(err, &input):
		return "InputError"
	case errors.As(err, &notFound):
		return "NotFound"
	case errors.As(err, &conflict), errors.As(err, &pick), errors.As(err, &unique):
		return "Conflict"
	case errors.As(err, &remote):
		return "RemoteError"
	case errors.As(err, &timeout):
		return "TimeoutError"
	case errors.As(err, &schema):
		return "SchemaError"
	default:
		return "Fatal"
	}
}
