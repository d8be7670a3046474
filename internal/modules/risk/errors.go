package risk

import (
	"errors"
	"fmt"
)

// Input validation errors. These are returned synchronously before any
// computation runs; series are never truncated or padded to make shapes match.
var (
	ErrEmptySeries    = errors.New("returns series is empty")
	ErrNonFiniteValue = errors.New("series contains NaN or Inf")
	ErrLengthMismatch = errors.New("paired series must have equal lengths")
)

// UnknownMethodError indicates an unrecognized VaR method string.
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown VaR method: %q", e.Method)
}
