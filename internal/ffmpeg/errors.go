package ffmpeg

import (
	"fmt"

	"github.com/book-expert/variation-service/internal/core"
)

// EngineError describes a failed external engine invocation. It matches
// core.ErrEngine via errors.Is.
type EngineError struct {
	Stage      string
	Command    string
	Diagnostic string
	Cause      error
}

// NewEngineError creates an EngineError.
func NewEngineError(stage, command, diagnostic string, cause error) *EngineError {
	return &EngineError{
		Stage:      stage,
		Command:    command,
		Diagnostic: diagnostic,
		Cause:      cause,
	}
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s stage failed: command: %s\nerror: %s", e.Stage, e.Command, e.Diagnostic)
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is core.ErrEngine.
func (e *EngineError) Is(target error) bool {
	return target == core.ErrEngine
}
