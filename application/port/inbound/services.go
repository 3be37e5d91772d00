package inbound

import (
	"context"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/domain/entity"
)

// AuditLedger is the append-only record of governed actions. It exposes no
// update or delete.
type AuditLedger interface {
	Append(ctx context.Context, entry entity.AuditEntry) (string, error)
	Read(ctx context.Context, domainID string, limit int) ([]entity.AuditEntry, error)
	Get(ctx context.Context, entryID string) (entity.AuditEntry, error)
	Correct(ctx context.Context, originalID string, initiatedBy entity.Initiator, outcome entity.Outcome, notes string) (string, error)
}

// BudgetGovernor tracks rolling weekly spend and gates cost-incurring calls
type BudgetGovernor interface {
	WeeklySpend(ctx context.Context, domainID string) (float64, error)
	Check(ctx context.Context, domainID string) (*entity.BudgetCheck, error)
	TrackCost(ctx context.Context, domainID, provider string, amount float64, description string) error
	CanProceed(ctx context.Context, domainID string) (bool, string, error)

	// WithSpendLock runs fn while holding the domain's spend lock. Without a
	// hard cap configured it runs fn directly.
	WithSpendLock(ctx context.Context, domainID string, fn func(ctx context.Context) error) error
}

type CreateApprovalRequest struct {
	DomainID        string              `json:"domain_id"`
	ApprovalType    entity.ApprovalType `json:"approval_type"`
	ItemReference   string              `json:"item_reference"`
	ItemKind        entity.ItemKind     `json:"item_kind"`
	RiskLevel       entity.RiskLevel    `json:"risk_level"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	ImpactStatement string              `json:"impact_statement"`
	InitiatedBy     entity.Initiator    `json:"initiated_by"`
}

type DecideRequest struct {
	ApprovalID string          `json:"approval_id"`
	Decision   entity.Decision `json:"decision"`
	DecidedBy  string          `json:"decided_by"`
	Reason     string          `json:"reason,omitempty"`
}

// DecideResult separates the recorded decision from the downstream apply.
// ApplyErr is set when the decision stands but applying it failed.
type DecideResult struct {
	Approval       *entity.Approval      `json:"approval"`
	Applied        *outbound.ApplyResult `json:"applied,omitempty"`
	ApplyErr       error                 `json:"-"`
	AlreadyDecided bool                  `json:"already_decided"`
}

// ApprovalGate turns proposed actions into pending decisions
type ApprovalGate interface {
	Create(ctx context.Context, req CreateApprovalRequest) (*entity.Approval, error)
	Decide(ctx context.Context, req DecideRequest) (*DecideResult, error)
	BulkApprove(ctx context.Context, domainID string, approvalType entity.ApprovalType, decidedBy string) (int, error)
	Reapply(ctx context.Context, approvalID string) (*outbound.ApplyResult, error)
	List(ctx context.Context, domainID string, status *entity.ApprovalStatus) ([]*entity.Approval, error)
	Get(ctx context.Context, approvalID string) (*entity.Approval, error)
}

type DeployRequest struct {
	DomainID    string           `json:"domain_id"`
	ActionType  string           `json:"action_type"`
	Target      string           `json:"target"`
	BeforeState string           `json:"before_state"`
	AfterState  string           `json:"after_state"`
	ApprovalID  string           `json:"approval_id"`
	InitiatedBy entity.Initiator `json:"initiated_by"`
	ApprovedBy  string           `json:"approved_by,omitempty"`
}

type RollbackResult struct {
	Deployment   *entity.Deployment `json:"deployment"`
	AuditEntryID string             `json:"audit_entry_id"`
}

// DeploymentManager records applied changes and owns the rollback window
type DeploymentManager interface {
	Deploy(ctx context.Context, req DeployRequest) (*entity.Deployment, error)
	Rollback(ctx context.Context, deploymentID string, initiatedBy entity.Initiator) (*RollbackResult, error)
	ExpireSweep(ctx context.Context) (int, error)
	Get(ctx context.Context, deploymentID string) (*entity.Deployment, error)
	List(ctx context.Context, filter entity.DeploymentFilter) ([]*entity.Deployment, error)
	RecordScoreDelta(ctx context.Context, deploymentID string, delta float64) error
}

type OpenTicketRequest struct {
	DomainID        string `json:"domain_id"`
	Source          string `json:"source"`
	TriggeringQuery string `json:"triggering_query"`
	FalseClaim      string `json:"false_claim"`
	Severity        int    `json:"severity"`
}

// TicketTracker runs the forward-only hallucination lifecycle
type TicketTracker interface {
	Open(ctx context.Context, req OpenTicketRequest) (*entity.HallucinationTicket, error)
	Advance(ctx context.Context, ticketID string, target entity.TicketStatus, evidence string) (*entity.HallucinationTicket, error)
	AssignBrief(ctx context.Context, ticketID, briefID string) error
	List(ctx context.Context, domainID string, status *entity.TicketStatus) ([]*entity.HallucinationTicket, error)
	Get(ctx context.Context, ticketID string) (*entity.HallucinationTicket, error)
	FindByBrief(ctx context.Context, briefID string) (*entity.HallucinationTicket, error)
}

// ExecutionOutcome distinguishes policy rejections from infrastructure failures
type ExecutionOutcome string

const (
	ExecutionApplied  ExecutionOutcome = "applied"
	ExecutionRejected ExecutionOutcome = "rejected"
	ExecutionFailed   ExecutionOutcome = "failed"
)

type ExecutionResult struct {
	Outcome    ExecutionOutcome            `json:"outcome"`
	Reason     string                      `json:"reason,omitempty"`
	Approval   *entity.Approval            `json:"approval,omitempty"`
	Deployment *entity.Deployment          `json:"deployment,omitempty"`
	Ticket     *entity.HallucinationTicket `json:"ticket,omitempty"`
	Brief      *entity.Brief               `json:"brief,omitempty"`
	Err        error                       `json:"-"`
}

// BulkExecuteResult reports one ExecutionResult per pending approval that
// was picked up. Applied counts the ones that ran to completion.
type BulkExecuteResult struct {
	Applied int                `json:"applied"`
	Results []*ExecutionResult `json:"results"`
}

type GenerateBriefRequest struct {
	DomainID string `json:"domain_id"`
	TicketID string `json:"ticket_id"`
	Priority string `json:"priority"`
	Target   string `json:"target"`
}

type ProposedAction struct {
	DomainID        string              `json:"domain_id"`
	ApprovalType    entity.ApprovalType `json:"approval_type"`
	ItemKind        entity.ItemKind     `json:"item_kind"`
	ItemReference   string              `json:"item_reference"`
	Priority        string              `json:"priority"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	ImpactStatement string              `json:"impact_statement"`
}

// ActionCoordinator drives one triggering event through the pipeline
type ActionCoordinator interface {
	GenerateBrief(ctx context.Context, req GenerateBriefRequest) (*ExecutionResult, error)
	Propose(ctx context.Context, action ProposedAction) (*entity.Approval, error)
	Execute(ctx context.Context, approvalID, decidedBy string) (*ExecutionResult, error)
	BulkExecute(ctx context.Context, domainID string, approvalType entity.ApprovalType, decidedBy string) (*BulkExecuteResult, error)
	Decline(ctx context.Context, approvalID, decidedBy, reason string) (*entity.Approval, error)
	Verify(ctx context.Context, ticketID, evidence string) (*entity.HallucinationTicket, error)
	Rollback(ctx context.Context, deploymentID string, initiatedBy entity.Initiator) (*RollbackResult, error)
}
