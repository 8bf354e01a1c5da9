package domain

// Stage enumerates the states of one generation attempt.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageAnalyzing    Stage = "analyzing"
	StageResearching  Stage = "researching"
	StageStrategizing Stage = "strategizing"
	StageWriting      Stage = "writing"
	StageTransforming Stage = "transforming"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

// Terminal reports whether no further transitions follow the stage.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// StageOutcome records how a stage ended.
type StageOutcome string

const (
	OutcomeSucceeded StageOutcome = "succeeded"
	OutcomeDegraded  StageOutcome = "degraded"
	OutcomeFailed    StageOutcome = "failed"
)
