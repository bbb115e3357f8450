package domain

import (
	"context"
	"time"
)

// DecisionOutcome is the result of one throttle evaluation.
type DecisionOutcome string

const (
	OutcomeDelivered  DecisionOutcome = "delivered"
	OutcomeSuppressed DecisionOutcome = "suppressed"
	OutcomeSuspended  DecisionOutcome = "suspended"
	OutcomeSkipped    DecisionOutcome = "skipped"
)

// ThrottleDecision captures one engine decision for offline analysis of the
// weighting heuristics.
type ThrottleDecision struct {
	Camera            string
	Class             NotificationClass
	Outcome           DecisionOutcome
	NormalizedWeight  int
	DynamicFactor     float64
	Multiplier        float64
	EffectiveCooldown float64
	At                time.Time
}

// ThrottleDecisionRecorder sinks throttle decisions to an analytics store.
// Recording is best-effort; failures must not affect the decision path.
type ThrottleDecisionRecorder interface {
	RecordDecision(ctx context.Context, decision ThrottleDecision) error
	Flush(ctx context.Context) error
	Close() error
}
