package engine

import "errors"

var (
	// ErrValidation indicates a validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a missing selection file.
	ErrNotFound = errors.New("not found")

	// ErrEmptySelection indicates a selection with no modules.
	ErrEmptySelection = errors.New("selection has no modules")

	// ErrNoSourceRoot indicates build was asked to run without an
	// authorable module root.
	ErrNoSourceRoot = errors.New("no source module root configured")
)
