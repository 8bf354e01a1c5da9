package pipeline

import (
	"time"

	"adgenius/internal/domain"
)

// Event reports a stage transition. Outcome is empty when the stage starts.
type Event struct {
	Stage   domain.Stage        `json:"stage"`
	Outcome domain.StageOutcome `json:"outcome,omitempty"`
	Error   string              `json:"error,omitempty"`
	At      time.Time           `json:"at"`
}

// Degraded reports whether the stage fell back to a default.
func (e Event) Degraded() bool {
	return e.Outcome == domain.OutcomeDegraded
}

// Observer receives events synchronously, in stage order.
type Observer func(Event)
