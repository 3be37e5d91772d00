package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
)

// Store keeps every pipeline entity in process memory. Values are copied on
// the way in and out so callers never share memory with stored rows.
type Store struct {
	mu sync.Mutex

	approvals   map[string]entity.Approval
	audit       []entity.AuditEntry
	auditIndex  map[string]int
	budget      []entity.BudgetLedgerEntry
	domains     map[string]entity.Domain
	deployments map[string]entity.Deployment
	tickets     map[string]entity.HallucinationTicket
	briefs      map[string]entity.Brief
	keywords    map[string]bool
}

func NewStore() *Store {
	return &Store{
		approvals:   make(map[string]entity.Approval),
		auditIndex:  make(map[string]int),
		domains:     make(map[string]entity.Domain),
		deployments: make(map[string]entity.Deployment),
		tickets:     make(map[string]entity.HallucinationTicket),
		briefs:      make(map[string]entity.Brief),
		keywords:    make(map[string]bool),
	}
}

func (s *Store) Approvals() outbound.ApprovalRepository        { return approvalRepo{s} }
func (s *Store) Audit() outbound.AuditRepository               { return auditRepo{s} }
func (s *Store) BudgetLedger() outbound.BudgetLedgerRepository { return budgetRepo{s} }
func (s *Store) Domains() outbound.DomainRepository            { return domainRepo{s} }
func (s *Store) Deployments() outbound.DeploymentRepository    { return deploymentRepo{s} }
func (s *Store) Tickets() outbound.TicketRepository            { return ticketRepo{s} }
func (s *Store) Briefs() outbound.BriefRepository              { return briefRepo{s} }
func (s *Store) Keywords() outbound.KeywordRepository          { return keywordRepo{s} }

// TrackKeyword registers a keyword id so MarkApproved can find it
func (s *Store) TrackKeyword(keywordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keywords[keywordID]; !ok {
		s.keywords[keywordID] = false
	}
}

// KeywordApproved reports whether MarkApproved ran for keywordID
func (s *Store) KeywordApproved(keywordID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keywords[keywordID]
}

func limitOf(n, limit int) int {
	if limit > 0 && limit < n {
		return limit
	}
	return n
}

// approvals

type approvalRepo struct{ s *Store }

func copyApproval(a entity.Approval) *entity.Approval {
	out := a
	if a.DecidedBy != nil {
		v := *a.DecidedBy
		out.DecidedBy = &v
	}
	if a.DecidedAt != nil {
		v := *a.DecidedAt
		out.DecidedAt = &v
	}
	return &out
}

func (r approvalRepo) Create(ctx context.Context, approval *entity.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.approvals[approval.ID]; exists {
		return apperr.InvalidRequest("approval already exists: " + approval.ID)
	}
	r.s.approvals[approval.ID] = *copyApproval(*approval)
	return nil
}

func (r approvalRepo) FindByID(ctx context.Context, id string) (*entity.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok {
		return nil, apperr.NotFound(apperr.ErrCodeApprovalNotFound, "approval", id)
	}
	return copyApproval(a), nil
}

func (r approvalRepo) SaveDecision(ctx context.Context, approval *entity.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.approvals[approval.ID]
	if !ok {
		return apperr.NotFound(apperr.ErrCodeApprovalNotFound, "approval", approval.ID)
	}
	if stored.Status != entity.ApprovalStatusPending {
		return apperr.ApprovalNotPending(approval.ID, string(stored.Status))
	}
	stored.Status = approval.Status
	stored.DecidedBy = approval.DecidedBy
	stored.DecidedAt = approval.DecidedAt
	r.s.approvals[approval.ID] = *copyApproval(stored)
	return nil
}

func (r approvalRepo) List(ctx context.Context, filter entity.ApprovalFilter) ([]*entity.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.Approval{}
	for _, a := range r.s.approvals {
		if filter.DomainID != "" && a.DomainID != filter.DomainID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.ApprovalType != nil && a.ApprovalType != *filter.ApprovalType {
			continue
		}
		out = append(out, copyApproval(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out[:limitOf(len(out), filter.Limit)], nil
}

// audit

type auditRepo struct{ s *Store }

func (r auditRepo) Append(ctx context.Context, entry entity.AuditEntry) error {
	if entry.EntryID == "" {
		return apperr.MissingField("entry_id")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.auditIndex[entry.EntryID]; exists {
		return apperr.ErrAuditImmutable
	}
	r.s.auditIndex[entry.EntryID] = len(r.s.audit)
	r.s.audit = append(r.s.audit, entry.Clone())
	return nil
}

func (r auditRepo) FindByID(ctx context.Context, entryID string) (entity.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	idx, ok := r.s.auditIndex[entryID]
	if !ok {
		return entity.AuditEntry{}, apperr.NotFound(apperr.ErrCodeAuditNotFound, "audit entry", entryID)
	}
	return r.s.audit[idx].Clone(), nil
}

// ListByDomain walks the log backwards so entries come out newest first in
// append order, even when timestamps tie.
func (r auditRepo) ListByDomain(ctx context.Context, domainID string, limit int) ([]entity.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []entity.AuditEntry{}
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		if r.s.audit[i].DomainID != domainID {
			continue
		}
		out = append(out, r.s.audit[i].Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// budget ledger

type budgetRepo struct{ s *Store }

func (r budgetRepo) Append(ctx context.Context, entry entity.BudgetLedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.budget = append(r.s.budget, entry)
	return nil
}

func (r budgetRepo) SumSince(ctx context.Context, domainID string, since time.Time) (float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var units int64
	for _, e := range r.s.budget {
		if e.DomainID == domainID && !e.IncurredAt.Before(since) {
			units += entity.CostUnits(e.Cost)
		}
	}
	return entity.FromCostUnits(units), nil
}

// domains

type domainRepo struct{ s *Store }

func (r domainRepo) FindByID(ctx context.Context, id string) (*entity.Domain, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.domains[id]
	if !ok {
		return nil, apperr.NotFound(apperr.ErrCodeDomainNotFound, "domain", id)
	}
	return &d, nil
}

func (r domainRepo) Upsert(ctx context.Context, domain *entity.Domain) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.domains[domain.ID] = *domain
	return nil
}

// deployments

type deploymentRepo struct{ s *Store }

func copyDeployment(d entity.Deployment) *entity.Deployment {
	out := d
	if d.ScoreDelta != nil {
		v := *d.ScoreDelta
		out.ScoreDelta = &v
	}
	return &out
}

func (r deploymentRepo) Create(ctx context.Context, deployment *entity.Deployment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.deployments[deployment.ID]; exists {
		return apperr.InvalidRequest("deployment already exists: " + deployment.ID)
	}
	r.s.deployments[deployment.ID] = *copyDeployment(*deployment)
	return nil
}

func (r deploymentRepo) FindByID(ctx context.Context, id string) (*entity.Deployment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deployments[id]
	if !ok {
		return nil, apperr.NotFound(apperr.ErrCodeDeploymentNotFound, "deployment", id)
	}
	return copyDeployment(d), nil
}

func (r deploymentRepo) List(ctx context.Context, filter entity.DeploymentFilter) ([]*entity.Deployment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.Deployment{}
	for _, d := range r.s.deployments {
		if filter.DomainID != "" && d.DomainID != filter.DomainID {
			continue
		}
		if filter.ApprovalID != "" && d.ApprovalID != filter.ApprovalID {
			continue
		}
		if filter.RollbackStatus != nil && d.RollbackStatus != *filter.RollbackStatus {
			continue
		}
		out = append(out, copyDeployment(d))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeployedAt.After(out[j].DeployedAt)
	})
	return out[:limitOf(len(out), filter.Limit)], nil
}

func (r deploymentRepo) TransitionRollbackStatus(ctx context.Context, id string, from, to entity.RollbackStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deployments[id]
	if !ok {
		return false, apperr.NotFound(apperr.ErrCodeDeploymentNotFound, "deployment", id)
	}
	if d.RollbackStatus != from {
		return false, nil
	}
	d.RollbackStatus = to
	r.s.deployments[id] = d
	return true, nil
}

func (r deploymentRepo) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, d := range r.s.deployments {
		if d.ExpireIfDue(now) {
			r.s.deployments[id] = d
			n++
		}
	}
	return n, nil
}

func (r deploymentRepo) UpdateScoreDelta(ctx context.Context, id string, delta float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deployments[id]
	if !ok {
		return apperr.NotFound(apperr.ErrCodeDeploymentNotFound, "deployment", id)
	}
	d.ScoreDelta = &delta
	r.s.deployments[id] = d
	return nil
}

// tickets

type ticketRepo struct{ s *Store }

func copyTicket(t entity.HallucinationTicket) *entity.HallucinationTicket {
	out := t
	if t.AssignedBriefReference != nil {
		v := *t.AssignedBriefReference
		out.AssignedBriefReference = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		out.ClosedAt = &v
	}
	if t.ResolutionEvidence != nil {
		v := *t.ResolutionEvidence
		out.ResolutionEvidence = &v
	}
	return &out
}

func (r ticketRepo) Create(ctx context.Context, ticket *entity.HallucinationTicket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.tickets[ticket.ID]; exists {
		return apperr.InvalidRequest("ticket already exists: " + ticket.ID)
	}
	r.s.tickets[ticket.ID] = *copyTicket(*ticket)
	return nil
}

func (r ticketRepo) FindByID(ctx context.Context, id string) (*entity.HallucinationTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, apperr.NotFound(apperr.ErrCodeTicketNotFound, "ticket", id)
	}
	return copyTicket(t), nil
}

func (r ticketRepo) FindByBriefReference(ctx context.Context, briefID string) (*entity.HallucinationTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.AssignedBriefReference != nil && *t.AssignedBriefReference == briefID {
			return copyTicket(t), nil
		}
	}
	return nil, apperr.NotFound(apperr.ErrCodeTicketNotFound, "ticket for brief", briefID)
}

func (r ticketRepo) SaveTransition(ctx context.Context, ticket *entity.HallucinationTicket, expectedFrom entity.TicketStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return apperr.NotFound(apperr.ErrCodeTicketNotFound, "ticket", ticket.ID)
	}
	if stored.Status != expectedFrom {
		return apperr.InvalidTransition(string(stored.Status), string(ticket.Status))
	}
	stored.Status = ticket.Status
	stored.ResolutionEvidence = ticket.ResolutionEvidence
	if stored.ClosedAt == nil {
		stored.ClosedAt = ticket.ClosedAt
	}
	r.s.tickets[ticket.ID] = *copyTicket(stored)
	return nil
}

func (r ticketRepo) AssignBrief(ctx context.Context, ticketID, briefID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[ticketID]
	if !ok {
		return apperr.NotFound(apperr.ErrCodeTicketNotFound, "ticket", ticketID)
	}
	t.AssignedBriefReference = &briefID
	r.s.tickets[ticketID] = t
	return nil
}

func (r ticketRepo) List(ctx context.Context, filter entity.TicketFilter) ([]*entity.HallucinationTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.HallucinationTicket{}
	for _, t := range r.s.tickets {
		if filter.DomainID != "" && t.DomainID != filter.DomainID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, copyTicket(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	return out[:limitOf(len(out), filter.Limit)], nil
}

// briefs

type briefRepo struct{ s *Store }

func (r briefRepo) Create(ctx context.Context, brief *entity.Brief) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.briefs[brief.ID] = *brief
	return nil
}

func (r briefRepo) FindByID(ctx context.Context, id string) (*entity.Brief, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.briefs[id]
	if !ok {
		return nil, apperr.NotFound(apperr.ErrCodeBriefNotFound, "brief", id)
	}
	return &b, nil
}

// keywords

type keywordRepo struct{ s *Store }

func (r keywordRepo) MarkApproved(ctx context.Context, keywordID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.keywords[keywordID]; !ok {
		return apperr.InvalidRequest("unknown keyword: " + keywordID)
	}
	r.s.keywords[keywordID] = true
	return nil
}
