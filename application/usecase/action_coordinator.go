package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
	"github.com/brandpilot/brandpilot/infrastructure/service/spendlock"
)

// CoordinatorDeps groups what ActionCoordinatorUseCase drives
type CoordinatorDeps struct {
	Gate        inbound.ApprovalGate
	Budget      inbound.BudgetGovernor
	Deployments inbound.DeploymentManager
	Tickets     inbound.TicketTracker
	Audit       inbound.AuditLedger

	Generator outbound.ContentGenerator
	Publisher outbound.PublishingBackend
	Briefs    outbound.BriefRepository
	Notifier  outbound.Notifier
	Metrics   outbound.PipelineMetrics

	// ExecutionLocker serializes Execute per approval. A process-local
	// locker is used when nil.
	ExecutionLocker outbound.SpendLocker

	Logger  logger.Logger
	Clock   Clock
	Timeout time.Duration
}

// ActionCoordinatorUseCase carries one triggering event through the services.
// The services never call each other; all sequencing lives here.
//
// Bad input and unknown ids come back as errors. Once the pipeline is
// underway, policy blocks and collaborator failures come back as an
// ExecutionResult with outcome rejected or failed, and the attempt is audited.
type ActionCoordinatorUseCase struct {
	gate        inbound.ApprovalGate
	budget      inbound.BudgetGovernor
	deployments inbound.DeploymentManager
	tickets     inbound.TicketTracker
	audit       inbound.AuditLedger
	generator   outbound.ContentGenerator
	publisher   outbound.PublishingBackend
	briefs      outbound.BriefRepository
	notifier    outbound.Notifier
	metrics     outbound.PipelineMetrics
	executions  outbound.SpendLocker
	logger      logger.Logger
	now         Clock
	timeout     time.Duration
}

func NewActionCoordinatorUseCase(deps CoordinatorDeps) *ActionCoordinatorUseCase {
	if deps.Metrics == nil {
		deps.Metrics = outbound.NoopMetrics{}
	}
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultCollaboratorTimeout
	}
	if deps.ExecutionLocker == nil {
		deps.ExecutionLocker = spendlock.NewLocalLocker()
	}
	return &ActionCoordinatorUseCase{
		gate:        deps.Gate,
		budget:      deps.Budget,
		deployments: deps.Deployments,
		tickets:     deps.Tickets,
		audit:       deps.Audit,
		generator:   deps.Generator,
		publisher:   deps.Publisher,
		briefs:      deps.Briefs,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		executions:  deps.ExecutionLocker,
		logger:      deps.Logger.WithFields(map[string]interface{}{"component": "action_coordinator"}),
		now:         orSystemClock(deps.Clock),
		timeout:     deps.Timeout,
	}
}

// GenerateBrief drafts a corrective brief, charges its cost, links it to the
// ticket and proposes it for approval.
func (uc *ActionCoordinatorUseCase) GenerateBrief(ctx context.Context, req inbound.GenerateBriefRequest) (*inbound.ExecutionResult, error) {
	if req.DomainID == "" {
		return nil, apperr.MissingField("domain_id")
	}

	result := &inbound.ExecutionResult{}
	briefReq := outbound.BriefRequest{
		DomainID: req.DomainID,
		Priority: req.Priority,
		Target:   req.Target,
	}
	if req.TicketID != "" {
		ticket, err := uc.tickets.Get(ctx, req.TicketID)
		if err != nil {
			return nil, err
		}
		if ticket.DomainID != req.DomainID {
			return nil, apperr.InvalidRequest("ticket belongs to another domain")
		}
		if ticket.Status.Terminal() {
			return nil, apperr.InvalidTransition(string(ticket.Status), string(entity.TicketStatusBriefGenerated))
		}
		result.Ticket = ticket
		briefReq.TicketID = ticket.ID
		briefReq.TriggeringQuery = ticket.TriggeringQuery
		briefReq.FalseClaim = ticket.FalseClaim
	}

	var draft *outbound.BriefDraft
	err := uc.budget.WithSpendLock(ctx, req.DomainID, func(ctx context.Context) error {
		ok, reason, err := uc.budget.CanProceed(ctx, req.DomainID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.BudgetExceeded(req.DomainID, reason)
		}

		draft, err = uc.generator.Generate(ctx, briefReq)
		if err != nil {
			return err
		}
		return uc.budget.TrackCost(ctx, req.DomainID, draft.Cost.Provider, draft.Cost.Amount, draft.Cost.Description)
	})
	if err != nil {
		return uc.degrade(ctx, "generate_brief", req.DomainID, result, err)
	}

	brief := &entity.Brief{
		ID:        uuid.NewString(),
		DomainID:  req.DomainID,
		TicketID:  req.TicketID,
		Title:     draft.Title,
		Priority:  req.Priority,
		Target:    req.Target,
		Content:   draft.Content,
		Engine:    draft.Engine,
		CreatedAt: uc.now(),
	}
	if err := uc.briefs.Create(ctx, brief); err != nil {
		return uc.degrade(ctx, "store_brief", req.DomainID, result, storeErr("brief create", err))
	}
	result.Brief = brief

	_, err = uc.audit.Append(ctx, entity.AuditEntry{
		DomainID:   brief.DomainID,
		Timestamp:  brief.CreatedAt,
		ActionType: entity.ActionBriefGenerated,
		ActionDetail: entity.BriefDetail{
			BriefID:  brief.ID,
			TicketID: brief.TicketID,
			Engine:   brief.Engine,
			Cost:     draft.Cost.Amount,
		},
		InitiatedBy: entity.InitiatorAgent,
		Outcome:     entity.OutcomeSuccess,
	})
	if err != nil {
		return nil, err
	}

	if result.Ticket != nil {
		if err := uc.tickets.AssignBrief(ctx, result.Ticket.ID, brief.ID); err != nil {
			return uc.degrade(ctx, "assign_brief", req.DomainID, result, err)
		}
		if result.Ticket.CanAdvance(entity.TicketStatusBriefGenerated) {
			ticket, err := uc.tickets.Advance(ctx, result.Ticket.ID, entity.TicketStatusBriefGenerated, "")
			if err != nil {
				return uc.degrade(ctx, "advance_ticket", req.DomainID, result, err)
			}
			result.Ticket = ticket
		}
	}

	approval, err := uc.Propose(ctx, inbound.ProposedAction{
		DomainID:        req.DomainID,
		ApprovalType:    entity.ApprovalTypeBrief,
		ItemKind:        entity.ItemKindBrief,
		ItemReference:   brief.ID,
		Priority:        req.Priority,
		Title:           brief.Title,
		Description:     summarize(brief.Content, 280),
		ImpactStatement: impactFor(result.Ticket, req.Target),
	})
	if err != nil {
		return uc.degrade(ctx, "propose", req.DomainID, result, err)
	}
	result.Approval = approval
	result.Outcome = inbound.ExecutionApplied

	uc.metrics.ObserveOutcome("generate_brief", string(result.Outcome))
	logger.LogGovernedAction(ctx, uc.logger, "generate_brief", req.DomainID, string(entity.OutcomeSuccess), map[string]interface{}{
		"brief_id":    brief.ID,
		"approval_id": approval.ID,
		"engine":      brief.Engine,
	})
	return result, nil
}

// Propose turns a proposed action into a pending approval with its risk tier
// derived from the declared priority.
func (uc *ActionCoordinatorUseCase) Propose(ctx context.Context, action inbound.ProposedAction) (*entity.Approval, error) {
	return uc.gate.Create(ctx, inbound.CreateApprovalRequest{
		DomainID:        action.DomainID,
		ApprovalType:    action.ApprovalType,
		ItemReference:   action.ItemReference,
		ItemKind:        action.ItemKind,
		RiskLevel:       entity.MapPriorityToRisk(action.Priority),
		Title:           action.Title,
		Description:     action.Description,
		ImpactStatement: action.ImpactStatement,
		InitiatedBy:     entity.InitiatorAgent,
	})
}

// Execute approves an item and, when the applier yields publishable content,
// publishes it, records the deployment and advances the linked ticket.
//
// An approval that is already approved but never got its deployment is
// picked up again from the apply step. Executions of one approval never
// overlap.
func (uc *ActionCoordinatorUseCase) Execute(ctx context.Context, approvalID, decidedBy string) (*inbound.ExecutionResult, error) {
	approval, err := uc.gate.Get(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	result := &inbound.ExecutionResult{Approval: approval}

	unlock, err := uc.executions.Lock(ctx, executionKey(approvalID))
	if err != nil {
		return uc.degrade(ctx, "execution_lock", approval.DomainID, result, apperr.CollaboratorUnavailable("execution-lock", err))
	}
	defer unlock()

	decided, err := uc.gate.Decide(ctx, inbound.DecideRequest{
		ApprovalID: approvalID,
		Decision:   entity.DecisionApprove,
		DecidedBy:  decidedBy,
	})
	if err != nil {
		if apperr.IsPolicyRejection(err) {
			return nil, err
		}
		return uc.degrade(ctx, "decide", approval.DomainID, result, err)
	}
	approval = decided.Approval
	result.Approval = approval

	applied := decided.Applied
	approvedBy := decidedBy
	switch {
	case decided.AlreadyDecided:
		applied, err = uc.unfinished(ctx, approval)
		if err != nil {
			return uc.degrade(ctx, "resume", approval.DomainID, result, err)
		}
		if applied == nil {
			result.Outcome = inbound.ExecutionRejected
			result.Reason = fmt.Sprintf("approval already %s", approval.Status)
			uc.metrics.ObserveOutcome("execute", string(result.Outcome))
			return result, nil
		}
		if approval.DecidedBy != nil {
			approvedBy = *approval.DecidedBy
		}
		uc.logger.Info(ctx, "Resuming approved item with no deployment", map[string]interface{}{
			"approval_id": approval.ID,
			"domain_id":   approval.DomainID,
			"target":      applied.Target,
		})
	case decided.ApplyErr != nil:
		// the gate already audited the failed apply
		result.Outcome = inbound.ExecutionFailed
		result.Reason = decided.ApplyErr.Error()
		result.Err = decided.ApplyErr
		uc.metrics.ObserveOutcome("execute", string(result.Outcome))
		return result, nil
	}

	if applied == nil || applied.Target == "" {
		result.Outcome = inbound.ExecutionApplied
		if applied != nil {
			result.Reason = applied.Message
		}
		uc.metrics.ObserveOutcome("execute", string(result.Outcome))
		return result, nil
	}
	return uc.deliver(ctx, result, approval, applied, approvedBy)
}

// BulkExecute runs Execute for every pending approval of approvalType in the
// domain, so publishable items end in a deployment just as a single approve
// does. An empty approvalType matches every type. It stops at the first
// error Execute returns.
func (uc *ActionCoordinatorUseCase) BulkExecute(ctx context.Context, domainID string, approvalType entity.ApprovalType, decidedBy string) (*inbound.BulkExecuteResult, error) {
	if domainID == "" {
		return nil, apperr.MissingField("domain_id")
	}
	if decidedBy == "" {
		return nil, apperr.MissingField("decided_by")
	}

	pending := entity.ApprovalStatusPending
	approvals, err := uc.gate.List(ctx, domainID, &pending)
	if err != nil {
		return nil, err
	}

	out := &inbound.BulkExecuteResult{Results: []*inbound.ExecutionResult{}}
	for _, approval := range approvals {
		if approvalType != "" && approval.ApprovalType != approvalType {
			continue
		}
		result, err := uc.Execute(ctx, approval.ID, decidedBy)
		if err != nil {
			return out, err
		}
		out.Results = append(out.Results, result)
		if result.Outcome == inbound.ExecutionApplied {
			out.Applied++
		}
	}

	uc.logger.Info(ctx, "Bulk execute finished", map[string]interface{}{
		"domain_id":     domainID,
		"approval_type": approvalType,
		"picked_up":     len(out.Results),
		"applied":       out.Applied,
	})
	return out, nil
}

// unfinished re-applies an approved publishable item that has no deployment
// recorded for it. It returns nil when there is nothing left to do.
func (uc *ActionCoordinatorUseCase) unfinished(ctx context.Context, approval *entity.Approval) (*outbound.ApplyResult, error) {
	if approval.Status != entity.ApprovalStatusApproved || !approval.ItemKind.Publishes() {
		return nil, nil
	}
	existing, err := uc.deployments.List(ctx, entity.DeploymentFilter{ApprovalID: approval.ID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, nil
	}
	applied, err := uc.gate.Reapply(ctx, approval.ID)
	if err != nil {
		return nil, err
	}
	if applied == nil || applied.Target == "" {
		return nil, nil
	}
	return applied, nil
}

// deliver runs the budget gate, the publish, the deployment record and the
// ticket advance for applied content.
func (uc *ActionCoordinatorUseCase) deliver(ctx context.Context, result *inbound.ExecutionResult, approval *entity.Approval,
	applied *outbound.ApplyResult, approvedBy string) (*inbound.ExecutionResult, error) {
	ok, reason, err := uc.budget.CanProceed(ctx, approval.DomainID)
	if err != nil {
		return uc.degrade(ctx, "budget_check", approval.DomainID, result, err)
	}
	if !ok {
		return uc.degrade(ctx, "budget_check", approval.DomainID, result, apperr.BudgetExceeded(approval.DomainID, reason))
	}

	publishCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	published, err := uc.publisher.Publish(publishCtx, applied.Target, applied.Content)
	cancel()
	if err != nil {
		uc.alertDeploymentFailed(ctx, approval, applied.Target, err)
		return uc.degrade(ctx, "publish", approval.DomainID, result, apperr.CollaboratorUnavailable("publishing", err))
	}

	deployment, err := uc.deployments.Deploy(ctx, inbound.DeployRequest{
		DomainID:    approval.DomainID,
		ActionType:  string(approval.ItemKind),
		Target:      applied.Target,
		BeforeState: published.StateBefore,
		AfterState:  published.StateAfter,
		ApprovalID:  approval.ID,
		InitiatedBy: entity.InitiatorOperator,
		ApprovedBy:  approvedBy,
	})
	if err != nil {
		// no deployment record means no rollback path, so undo the publish
		uc.compensate(ctx, applied.Target, published.StateBefore)
		uc.alertDeploymentFailed(ctx, approval, applied.Target, err)
		return uc.degrade(ctx, "record_deployment", approval.DomainID, result, err)
	}
	result.Deployment = deployment
	result.Outcome = inbound.ExecutionApplied

	if approval.ItemKind == entity.ItemKindBrief {
		ticket, err := uc.advanceLinkedTicket(ctx, approval.ItemReference)
		if err != nil {
			uc.logger.Error(ctx, "Deployed content but ticket was not advanced", err, map[string]interface{}{
				"approval_id":   approval.ID,
				"deployment_id": deployment.ID,
			})
			result.Reason = "ticket not advanced: " + err.Error()
		}
		result.Ticket = ticket
	}

	uc.metrics.ObserveOutcome("execute", string(result.Outcome))
	logger.LogGovernedAction(ctx, uc.logger, "execute", approval.DomainID, string(entity.OutcomeSuccess), map[string]interface{}{
		"approval_id":   approval.ID,
		"deployment_id": deployment.ID,
		"target":        deployment.Target,
	})
	return result, nil
}

func (uc *ActionCoordinatorUseCase) Decline(ctx context.Context, approvalID, decidedBy, reason string) (*entity.Approval, error) {
	decided, err := uc.gate.Decide(ctx, inbound.DecideRequest{
		ApprovalID: approvalID,
		Decision:   entity.DecisionDecline,
		DecidedBy:  decidedBy,
		Reason:     reason,
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.ObserveOutcome("decline", string(decided.Approval.Status))
	return decided.Approval, nil
}

// Verify closes a ticket once the correction is confirmed
func (uc *ActionCoordinatorUseCase) Verify(ctx context.Context, ticketID, evidence string) (*entity.HallucinationTicket, error) {
	return uc.tickets.Advance(ctx, ticketID, entity.TicketStatusVerifiedClosed, evidence)
}

func (uc *ActionCoordinatorUseCase) Rollback(ctx context.Context, deploymentID string, initiatedBy entity.Initiator) (*inbound.RollbackResult, error) {
	return uc.deployments.Rollback(ctx, deploymentID, initiatedBy)
}

func (uc *ActionCoordinatorUseCase) advanceLinkedTicket(ctx context.Context, briefID string) (*entity.HallucinationTicket, error) {
	ticket, err := uc.tickets.FindByBrief(ctx, briefID)
	if err != nil {
		if errors.Is(err, apperr.ErrTicketNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !ticket.CanAdvance(entity.TicketStatusContentDeployed) {
		return ticket, nil
	}
	return uc.tickets.Advance(ctx, ticket.ID, entity.TicketStatusContentDeployed, "")
}

// degrade records a blocked or failed attempt and returns it as a result.
// Only a failure to write that record is returned as an error.
func (uc *ActionCoordinatorUseCase) degrade(ctx context.Context, stage, domainID string, result *inbound.ExecutionResult, cause error) (*inbound.ExecutionResult, error) {
	result.Outcome = inbound.ExecutionFailed
	if apperr.IsPolicyRejection(cause) {
		result.Outcome = inbound.ExecutionRejected
	}
	result.Reason = cause.Error()
	result.Err = cause

	_, err := uc.audit.Append(ctx, entity.AuditEntry{
		DomainID:     domainID,
		ActionType:   entity.ActionExecutionBlocked,
		ActionDetail: entity.BlockedDetail{Stage: stage, Reason: cause.Error()},
		InitiatedBy:  entity.InitiatorAgent,
		Outcome:      entity.OutcomeFailed,
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.ObserveOutcome(stage, string(result.Outcome))
	logger.LogGovernedAction(ctx, uc.logger, stage, domainID, string(entity.OutcomeFailed), map[string]interface{}{
		"result": result.Outcome,
		"reason": result.Reason,
	})
	return result, nil
}

func (uc *ActionCoordinatorUseCase) compensate(ctx context.Context, target, before string) {
	restoreCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	if err := uc.publisher.Restore(restoreCtx, target, before); err != nil {
		uc.logger.Error(ctx, "Could not undo unrecorded publish", err, map[string]interface{}{
			"target": target,
		})
	}
}

func (uc *ActionCoordinatorUseCase) alertDeploymentFailed(ctx context.Context, approval *entity.Approval, target string, cause error) {
	sendAlert(ctx, uc.notifier, uc.logger, outbound.Alert{
		Type:      outbound.AlertDeploymentFailed,
		DomainID:  approval.DomainID,
		Subject:   "Deployment failed",
		Message:   fmt.Sprintf("Publishing %s failed: %v", target, cause),
		Data:      map[string]interface{}{"approval_id": approval.ID},
		CreatedAt: uc.now(),
	})
}

func executionKey(approvalID string) string {
	return "approval:" + approvalID
}

func summarize(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func impactFor(ticket *entity.HallucinationTicket, target string) string {
	if ticket == nil {
		return "Publishes new content to " + target
	}
	return fmt.Sprintf("Corrects false claim %q (severity %d) by publishing to %s",
		ticket.FalseClaim, ticket.Severity, target)
}
