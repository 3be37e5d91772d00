package outbound

import (
	"context"
)

// BriefRequest is the input for drafting a corrective brief
type BriefRequest struct {
	DomainID        string
	TicketID        string
	TriggeringQuery string
	FalseClaim      string
	Priority        string
	Target          string
}

// BriefDraft is a drafted brief plus the cost of producing it
type BriefDraft struct {
	Title   string
	Content string
	Engine  string
	Cost    CostEvent
}

// CostEvent is emitted whenever an external AI call completes
type CostEvent struct {
	Provider    string
	Amount      float64
	Description string
}

// ContentEngine is one AI backend able to draft briefs
type ContentEngine interface {
	// Name identifies the engine in logs, metrics and audit detail
	Name() string

	// Draft produces a brief. Implementations must honour ctx cancellation.
	Draft(ctx context.Context, req BriefRequest) (*BriefDraft, error)
}

// ContentGenerator drafts briefs through a fallback chain of engines and
// returns a CollaboratorUnavailable error once every engine has failed.
type ContentGenerator interface {
	Generate(ctx context.Context, req BriefRequest) (*BriefDraft, error)
}

// CostSink consumes cost events (implemented by the budget governor)
type CostSink interface {
	TrackCost(ctx context.Context, domainID, provider string, amount float64, description string) error
}
