package outbound

import (
	"context"
	"time"
)

// ApplyResult describes what an applier did. Target and Content are set when
// the applied item produces publishable content.
type ApplyResult struct {
	ItemReference string
	Target        string
	Content       string
	Message       string
}

// ActionApplier performs the real side effect behind an approved item
type ActionApplier interface {
	Apply(ctx context.Context, itemReference string) (*ApplyResult, error)
}

// PublishResult carries the snapshot pair around a publish
type PublishResult struct {
	StateBefore string
	StateAfter  string
}

// PublishingBackend writes content to the managed property and can restore it
type PublishingBackend interface {
	Publish(ctx context.Context, target, content string) (*PublishResult, error)
	Restore(ctx context.Context, target, beforeState string) error
}

// AlertType enumerates the events that raise an alert
type AlertType string

const (
	AlertHallucinationSevere AlertType = "hallucination_severe"
	AlertBudgetExceeded      AlertType = "budget_exceeded"
	AlertDeploymentFailed    AlertType = "deployment_failed"
	AlertRollbackExecuted    AlertType = "rollback_executed"
)

// Alert is a fire-and-forget notification
type Alert struct {
	Type      AlertType              `json:"type"`
	DomainID  string                 `json:"domain_id"`
	Subject   string                 `json:"subject"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Notifier delivers alerts. Callers log and ignore errors.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// SpendLocker serializes check+track for one domain in hard-cap mode
type SpendLocker interface {
	Lock(ctx context.Context, domainID string) (unlock func(), err error)
}

// PipelineMetrics receives counters from the governed pipeline
type PipelineMetrics interface {
	ObserveDecision(decision string, risk string)
	ObserveOutcome(action string, outcome string)
	ObserveRollback(result string)
	ObserveEngineCall(engine string, result string)
	SetBudgetUsage(domainID string, ratio float64)
}

// NoopMetrics discards every observation
type NoopMetrics struct{}

func (NoopMetrics) ObserveDecision(string, string)   {}
func (NoopMetrics) ObserveOutcome(string, string)    {}
func (NoopMetrics) ObserveRollback(string)           {}
func (NoopMetrics) ObserveEngineCall(string, string) {}
func (NoopMetrics) SetBudgetUsage(string, float64)   {}
