package decisionlog

import (
	"context"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

type noopRecorder struct{}

func NewNoopRecorder() domain.ThrottleDecisionRecorder {
	return &noopRecorder{}
}

func (n *noopRecorder) RecordDecision(_ context.Context, _ domain.ThrottleDecision) error {
	return nil
}

func (n *noopRecorder) Flush(_ context.Context) error {
	return nil
}

func (n *noopRecorder) Close() error {
	return nil
}
