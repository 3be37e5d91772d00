package outbound

import (
	"context"
	"time"

	"github.com/brandpilot/brandpilot/domain/entity"
)

// ApprovalRepository persists approvals. Approvals are never deleted.
type ApprovalRepository interface {
	Create(ctx context.Context, approval *entity.Approval) error
	FindByID(ctx context.Context, id string) (*entity.Approval, error)

	// SaveDecision stores status, decided_by and decided_at only while the
	// stored row is still pending. Returns ErrApprovalNotPending otherwise.
	SaveDecision(ctx context.Context, approval *entity.Approval) error

	// List returns approvals newest first
	List(ctx context.Context, filter entity.ApprovalFilter) ([]*entity.Approval, error)
}

// AuditRepository is append-only: there is deliberately no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry entity.AuditEntry) error
	FindByID(ctx context.Context, entryID string) (entity.AuditEntry, error)

	// ListByDomain returns entries newest first
	ListByDomain(ctx context.Context, domainID string, limit int) ([]entity.AuditEntry, error)
}

// BudgetLedgerRepository is append-only
type BudgetLedgerRepository interface {
	Append(ctx context.Context, entry entity.BudgetLedgerEntry) error

	// SumSince sums cost for entries with incurred_at >= since
	SumSince(ctx context.Context, domainID string, since time.Time) (float64, error)
}

type DomainRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Domain, error)
	Upsert(ctx context.Context, domain *entity.Domain) error
}

type DeploymentRepository interface {
	// Create writes the snapshot pair and the initial rollback status together
	Create(ctx context.Context, deployment *entity.Deployment) error
	FindByID(ctx context.Context, id string) (*entity.Deployment, error)
	List(ctx context.Context, filter entity.DeploymentFilter) ([]*entity.Deployment, error)

	// TransitionRollbackStatus moves from -> to only when the stored status is
	// from. Returns false when another writer got there first.
	TransitionRollbackStatus(ctx context.Context, id string, from, to entity.RollbackStatus) (bool, error)

	// ExpireDue marks every available deployment whose window closed before now
	ExpireDue(ctx context.Context, now time.Time) (int, error)

	UpdateScoreDelta(ctx context.Context, id string, delta float64) error
}

type TicketRepository interface {
	Create(ctx context.Context, ticket *entity.HallucinationTicket) error
	FindByID(ctx context.Context, id string) (*entity.HallucinationTicket, error)
	FindByBriefReference(ctx context.Context, briefID string) (*entity.HallucinationTicket, error)

	// SaveTransition stores the new status fields only when the stored status
	// still equals expectedFrom. Returns ErrInvalidTransition otherwise.
	SaveTransition(ctx context.Context, ticket *entity.HallucinationTicket, expectedFrom entity.TicketStatus) error

	AssignBrief(ctx context.Context, ticketID, briefID string) error

	// List returns tickets ordered by severity desc, then detected_at desc
	List(ctx context.Context, filter entity.TicketFilter) ([]*entity.HallucinationTicket, error)
}

type BriefRepository interface {
	Create(ctx context.Context, brief *entity.Brief) error
	FindByID(ctx context.Context, id string) (*entity.Brief, error)
}

// KeywordRepository marks tracked queries as approved for monitoring
type KeywordRepository interface {
	MarkApproved(ctx context.Context, keywordID string) error
}
