package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller-side validation failures.
var (
	ErrEmptyQuery     = errors.New("empty query")
	ErrEmptySessionID = errors.New("empty session id")
	ErrBadChunkParams = errors.New("invalid chunking parameters")
)

// DimensionError reports a vector whose dimension does not match the
// collection it was added to or searched against.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: collection expects %d, got %d", e.Want, e.Got)
}

// RetrievalError wraps a vector-store backend failure. Callers decide
// whether to degrade or propagate; the store itself never swallows it.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval: %s: %s", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// ConfigError reports a hard misconfiguration detected at construction time.
// Missing credentials for an optional backend are not a ConfigError; they
// disable that backend instead.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}
