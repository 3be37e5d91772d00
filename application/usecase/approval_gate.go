package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

var validRisk = map[entity.RiskLevel]bool{
	entity.RiskLow:      true,
	entity.RiskMedium:   true,
	entity.RiskHigh:     true,
	entity.RiskCritical: true,
}

// ApprovalGateUseCase records decisions on proposed items. An approve runs
// the item's applier; a failed apply is surfaced but never undoes the
// decision.
type ApprovalGateUseCase struct {
	repo     outbound.ApprovalRepository
	appliers *ApplierRegistry
	audit    inbound.AuditLedger
	metrics  outbound.PipelineMetrics
	logger   logger.Logger
	now      Clock
}

func NewApprovalGateUseCase(
	repo outbound.ApprovalRepository,
	appliers *ApplierRegistry,
	audit inbound.AuditLedger,
	metrics outbound.PipelineMetrics,
	log logger.Logger,
	clock Clock,
) *ApprovalGateUseCase {
	if metrics == nil {
		metrics = outbound.NoopMetrics{}
	}
	if appliers == nil {
		appliers = NewApplierRegistry()
	}
	return &ApprovalGateUseCase{
		repo:     repo,
		appliers: appliers,
		audit:    audit,
		metrics:  metrics,
		logger:   log.WithFields(map[string]interface{}{"component": "approval_gate"}),
		now:      orSystemClock(clock),
	}
}

func (uc *ApprovalGateUseCase) Create(ctx context.Context, req inbound.CreateApprovalRequest) (*entity.Approval, error) {
	if req.DomainID == "" {
		return nil, apperr.MissingField("domain_id")
	}
	if req.ItemReference == "" {
		return nil, apperr.MissingField("item_reference")
	}
	if req.ItemKind == "" {
		return nil, apperr.MissingField("item_kind")
	}
	if req.ApprovalType == "" {
		req.ApprovalType = entity.ApprovalType(req.ItemKind)
	}
	if req.RiskLevel == "" {
		req.RiskLevel = entity.RiskMedium
	}
	if !validRisk[req.RiskLevel] {
		return nil, apperr.InvalidRequest("unknown risk level: " + string(req.RiskLevel))
	}
	if req.InitiatedBy == "" {
		req.InitiatedBy = entity.InitiatorAgent
	}

	approval := entity.NewApproval(uuid.NewString(), req.DomainID, req.ApprovalType, req.ItemReference,
		req.ItemKind, req.RiskLevel, req.Title, req.Description, req.ImpactStatement, uc.now())

	if err := uc.repo.Create(ctx, approval); err != nil {
		return nil, storeErr("approval create", err)
	}

	_, err := uc.audit.Append(ctx, entity.AuditEntry{
		DomainID:     approval.DomainID,
		Timestamp:    approval.CreatedAt,
		ActionType:   entity.ActionApprovalCreated,
		ActionDetail: approvalDetail(approval, "", ""),
		InitiatedBy:  req.InitiatedBy,
		ApprovalGate: approval.ID,
		Outcome:      entity.OutcomePending,
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info(ctx, "Approval created", map[string]interface{}{
		"approval_id": approval.ID,
		"domain_id":   approval.DomainID,
		"item_kind":   approval.ItemKind,
		"risk_level":  approval.RiskLevel,
	})
	return approval, nil
}

// Decide records a terminal decision. Deciding an already-decided approval
// returns the stored state with AlreadyDecided set and changes nothing.
func (uc *ApprovalGateUseCase) Decide(ctx context.Context, req inbound.DecideRequest) (*inbound.DecideResult, error) {
	if req.ApprovalID == "" {
		return nil, apperr.MissingField("approval_id")
	}
	if req.DecidedBy == "" {
		return nil, apperr.MissingField("decided_by")
	}
	if req.Decision != entity.DecisionApprove && req.Decision != entity.DecisionDecline {
		return nil, apperr.InvalidRequest("unknown decision: " + string(req.Decision))
	}

	approval, err := uc.repo.FindByID(ctx, req.ApprovalID)
	if err != nil {
		return nil, storeErr("approval load", err)
	}
	if approval.IsDecided() {
		return &inbound.DecideResult{Approval: approval, AlreadyDecided: true}, nil
	}

	if err := approval.Decide(req.Decision, req.DecidedBy, uc.now()); err != nil {
		return nil, err
	}
	if err := uc.repo.SaveDecision(ctx, approval); err != nil {
		if errors.Is(err, apperr.ErrApprovalNotPending) {
			// another caller decided first; report theirs
			stored, findErr := uc.repo.FindByID(ctx, req.ApprovalID)
			if findErr != nil {
				return nil, storeErr("approval load", findErr)
			}
			return &inbound.DecideResult{Approval: stored, AlreadyDecided: true}, nil
		}
		return nil, storeErr("approval save decision", err)
	}

	result := &inbound.DecideResult{Approval: approval}
	if req.Decision == entity.DecisionApprove {
		result.Applied, result.ApplyErr = uc.apply(ctx, approval)
	}

	outcome := entity.OutcomeSuccess
	applyMsg := ""
	if result.ApplyErr != nil {
		outcome = entity.OutcomeFailed
		applyMsg = result.ApplyErr.Error()
	}

	_, err = uc.audit.Append(ctx, entity.AuditEntry{
		DomainID:     approval.DomainID,
		Timestamp:    *approval.DecidedAt,
		ActionType:   entity.ActionApprovalDecided,
		ActionDetail: approvalDetail(approval, req.Decision, applyMsg),
		InitiatedBy:  entity.InitiatorOperator,
		ApprovalGate: approval.ID,
		ApprovedBy:   req.DecidedBy,
		ApprovedAt:   approval.DecidedAt,
		Outcome:      outcome,
		Notes:        req.Reason,
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.ObserveDecision(string(req.Decision), string(approval.RiskLevel))
	logger.LogGovernedAction(ctx, uc.logger, "approval_decided", approval.DomainID, string(outcome), map[string]interface{}{
		"approval_id": approval.ID,
		"decision":    req.Decision,
		"decided_by":  req.DecidedBy,
	})
	return result, nil
}

// BulkApprove approves every pending approval of approvalType in the domain
// and returns how many were newly decided. It stops at the first
// infrastructure failure.
func (uc *ApprovalGateUseCase) BulkApprove(ctx context.Context, domainID string, approvalType entity.ApprovalType, decidedBy string) (int, error) {
	if domainID == "" {
		return 0, apperr.MissingField("domain_id")
	}
	pending := entity.ApprovalStatusPending
	filter := entity.ApprovalFilter{DomainID: domainID, Status: &pending}
	if approvalType != "" {
		filter.ApprovalType = &approvalType
	}

	approvals, err := uc.repo.List(ctx, filter)
	if err != nil {
		return 0, storeErr("approval list", err)
	}

	count := 0
	for _, approval := range approvals {
		result, err := uc.Decide(ctx, inbound.DecideRequest{
			ApprovalID: approval.ID,
			Decision:   entity.DecisionApprove,
			DecidedBy:  decidedBy,
			Reason:     "bulk approve",
		})
		if err != nil {
			return count, err
		}
		if !result.AlreadyDecided {
			count++
		}
	}
	return count, nil
}

// Reapply runs the applier of an approved item again without recording a
// new decision.
func (uc *ApprovalGateUseCase) Reapply(ctx context.Context, approvalID string) (*outbound.ApplyResult, error) {
	approval, err := uc.repo.FindByID(ctx, approvalID)
	if err != nil {
		return nil, storeErr("approval load", err)
	}
	if approval.Status != entity.ApprovalStatusApproved {
		return nil, apperr.InvalidRequest(fmt.Sprintf("approval %s is %s, not approved", approval.ID, approval.Status))
	}
	return uc.apply(ctx, approval)
}

func (uc *ApprovalGateUseCase) List(ctx context.Context, domainID string, status *entity.ApprovalStatus) ([]*entity.Approval, error) {
	approvals, err := uc.repo.List(ctx, entity.ApprovalFilter{DomainID: domainID, Status: status})
	if err != nil {
		return nil, storeErr("approval list", err)
	}
	return approvals, nil
}

func (uc *ApprovalGateUseCase) Get(ctx context.Context, approvalID string) (*entity.Approval, error) {
	approval, err := uc.repo.FindByID(ctx, approvalID)
	if err != nil {
		return nil, storeErr("approval load", err)
	}
	return approval, nil
}

func (uc *ApprovalGateUseCase) apply(ctx context.Context, approval *entity.Approval) (*outbound.ApplyResult, error) {
	applier, err := uc.appliers.Lookup(approval.ItemKind)
	if err == nil {
		var result *outbound.ApplyResult
		result, err = applier.Apply(ctx, approval.ItemReference)
		if err == nil {
			return result, nil
		}
	}

	uc.logger.Error(ctx, "Approved item could not be applied; decision stands", err, map[string]interface{}{
		"approval_id":    approval.ID,
		"item_kind":      approval.ItemKind,
		"item_reference": approval.ItemReference,
	})
	return nil, err
}

func approvalDetail(a *entity.Approval, decision entity.Decision, applyErr string) entity.ApprovalDetail {
	return entity.ApprovalDetail{
		ApprovalID:    a.ID,
		ApprovalType:  a.ApprovalType,
		ItemKind:      a.ItemKind,
		ItemReference: a.ItemReference,
		RiskLevel:     a.RiskLevel,
		Decision:      decision,
		ApplyError:    applyErr,
	}
}
