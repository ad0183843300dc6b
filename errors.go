package randselect

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWeights reports a weight list with zero or non-finite total weight
	// (or a negative/NaN member). Callers render an inline error fragment.
	ErrInvalidWeights = errors.New("randselect: invalid weights")

	// ErrDanglingToken reports a placeholder whose choice set is not in the
	// artifact metadata. The token is dropped from the output.
	ErrDanglingToken = errors.New("randselect: dangling placeholder token")

	// ErrIterationBound reports that substitution kept producing tokens past
	// the configured pass limit. Remaining tokens are dropped.
	ErrIterationBound = errors.New("randselect: substitution pass bound exceeded")
)

// TokenError carries the local ids involved in a substitution failure.
type TokenError struct {
	Err    error // ErrDanglingToken or ErrIterationBound
	IDs    []LocalID
	Passes int
}

func (e *TokenError) Error() string {
	switch len(e.IDs) {
	case 0:
		return fmt.Sprintf("%v (passes=%d)", e.Err, e.Passes)
	case 1:
		return fmt.Sprintf("%v: id %s (passes=%d)", e.Err, e.IDs[0], e.Passes)
	default:
		return fmt.Sprintf("%v: %d ids, first %s (passes=%d)", e.Err, len(e.IDs), e.IDs[0], e.Passes)
	}
}

func (e *TokenError) Unwrap() error { return e.Err }
