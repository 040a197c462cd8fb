package mocktrace

import "github.com/pkg/errors"

var (
	// ErrAmbiguousLookup is returned by the query helpers when more than one
	// span matches a lookup that expects at most one.
	ErrAmbiguousLookup = errors.New("mocktrace: ambiguous lookup")

	// ErrAlreadyFinished is returned by FinishChecked when the span was
	// already finished.
	ErrAlreadyFinished = errors.New("mocktrace: span already finished")

	// ErrDuplicateSpan signals that the same span id reached the recorder
	// twice. It is an invariant violation and is raised as a panic.
	ErrDuplicateSpan = errors.New("mocktrace: span recorded twice")
)
