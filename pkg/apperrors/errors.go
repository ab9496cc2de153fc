package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrNoTable means no row/column structure could be recovered from a
	// document. It advances the router to the next strategy and is never
	// surfaced to API consumers as a failure.
	ErrNoTable = errors.New("no table structure found")

	// ErrNoFields means key/value extraction produced nothing matching
	// the question.
	ErrNoFields = errors.New("no matching fields found")

	// ErrAmbiguousColumn means an aggregate was requested but no target
	// column could be resolved. The engine refuses to guess.
	ErrAmbiguousColumn = errors.New("cannot determine target column")
)
