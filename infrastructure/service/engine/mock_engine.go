package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/brandpilot/brandpilot/application/port/outbound"
)

// MockEngine drafts deterministic briefs without calling out. Used when
// AI_MOCK_MODE is set and in tests.
type MockEngine struct {
	name    string
	latency time.Duration
	cost    float64
	err     error
}

func NewMockEngine(name string, latency time.Duration, cost float64) *MockEngine {
	return &MockEngine{name: name, latency: latency, cost: cost}
}

// Failing returns an engine whose every Draft fails with err
func Failing(name string, err error) *MockEngine {
	return &MockEngine{name: name, err: err}
}

func (m *MockEngine) Name() string { return m.name }

func (m *MockEngine) Draft(ctx context.Context, req outbound.BriefRequest) (*outbound.BriefDraft, error) {
	select {
	case <-time.After(m.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}

	title := "Clarification"
	if req.TriggeringQuery != "" {
		title = "Answering: " + req.TriggeringQuery
	}
	content := fmt.Sprintf("This page corrects a common misconception.\n\n%s", BuildPrompt(req))

	return &outbound.BriefDraft{
		Title:   title,
		Content: content,
		Engine:  m.name,
		Cost: outbound.CostEvent{
			Provider:    "mock",
			Amount:      m.cost,
			Description: "mock brief draft",
		},
	}, nil
}
