// Package apperr defines the error taxonomy surfaced to callers. Handlers map
// these onto HTTP status classes; everything else wraps with %w so the
// sentinel survives.
package apperr

import "errors"

var (
	// ErrNotFound covers a missing record or one outside the caller's
	// accessible workspaces. Never retried.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied means the caller's role is insufficient for the
	// requested mutation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInference wraps embedding/generation/tagging provider failures.
	ErrInference = errors.New("inference failed")

	// ErrDuplicate means an insert lost to an existing row on a uniqueness
	// constraint; callers resolve to the existing record.
	ErrDuplicate = errors.New("duplicate")
)

func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }
func IsInference(err error) bool        { return errors.Is(err, ErrInference) }
func IsDuplicate(err error) bool        { return errors.Is(err, ErrDuplicate) }
