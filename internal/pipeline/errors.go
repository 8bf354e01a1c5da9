package pipeline

import (
	"fmt"

	"adgenius/internal/domain"
)

// GenericFailureMessage is shown to users when the transform stage fails.
const GenericFailureMessage = "Something went wrong during generation. Please try again."

// Partial holds everything computed before the transform stage so a failed
// generation can be retried without repeating the text stages.
type Partial struct {
	Source   domain.Image
	Product  domain.ProductProfile
	Request  domain.GenerationRequest
	Strategy domain.Strategy
	Copy     domain.Copy
}

// TerminalError is the only failure a generation surfaces. It carries a
// user-facing message and the partial state needed by Pipeline.Retry.
type TerminalError struct {
	Stage       domain.Stage
	UserMessage string
	Err         error
	Partial     Partial
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("pipeline: %s failed: %v", e.Stage, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Retryable reports whether Pipeline.Retry can resume from this failure.
func (e *TerminalError) Retryable() bool {
	return !e.Partial.Source.Empty()
}
