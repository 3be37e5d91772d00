package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

// DefaultCollaboratorTimeout bounds every call to an external collaborator
// when no timeout is configured.
const DefaultCollaboratorTimeout = 30 * time.Second

// DeploymentManagerUseCase records applied changes and restores them inside
// the rollback window. Expiry is evaluated lazily on reads; ExpireSweep makes
// it observable without one.
type DeploymentManagerUseCase struct {
	repo      outbound.DeploymentRepository
	publisher outbound.PublishingBackend
	audit     inbound.AuditLedger
	notifier  outbound.Notifier
	metrics   outbound.PipelineMetrics
	logger    logger.Logger
	now       Clock
	timeout   time.Duration
}

func NewDeploymentManagerUseCase(
	repo outbound.DeploymentRepository,
	publisher outbound.PublishingBackend,
	audit inbound.AuditLedger,
	notifier outbound.Notifier,
	metrics outbound.PipelineMetrics,
	log logger.Logger,
	clock Clock,
	timeout time.Duration,
) *DeploymentManagerUseCase {
	if metrics == nil {
		metrics = outbound.NoopMetrics{}
	}
	if timeout <= 0 {
		timeout = DefaultCollaboratorTimeout
	}
	return &DeploymentManagerUseCase{
		repo:      repo,
		publisher: publisher,
		audit:     audit,
		notifier:  notifier,
		metrics:   metrics,
		logger:    log.WithFields(map[string]interface{}{"component": "deployment_manager"}),
		now:       orSystemClock(clock),
		timeout:   timeout,
	}
}

// Deploy records an applied change and opens its rollback window
func (uc *DeploymentManagerUseCase) Deploy(ctx context.Context, req inbound.DeployRequest) (*entity.Deployment, error) {
	if req.DomainID == "" {
		return nil, apperr.MissingField("domain_id")
	}
	if req.Target == "" {
		return nil, apperr.MissingField("target")
	}
	if req.InitiatedBy == "" {
		req.InitiatedBy = entity.InitiatorAgent
	}

	now := uc.now()
	deployment := entity.NewDeployment(uuid.NewString(), req.DomainID, req.ActionType, req.Target,
		req.BeforeState, req.AfterState, req.ApprovalID, now)

	if err := uc.repo.Create(ctx, deployment); err != nil {
		return nil, storeErr("deployment create", err)
	}

	entry := entity.AuditEntry{
		DomainID:   deployment.DomainID,
		Timestamp:  now,
		ActionType: entity.ActionContentDeployed,
		ActionDetail: entity.DeploymentDetail{
			DeploymentID:      deployment.ID,
			Target:            deployment.Target,
			ActionType:        deployment.ActionType,
			RollbackExpiresAt: deployment.RollbackExpiresAt,
		},
		InitiatedBy:       req.InitiatedBy,
		ApprovalGate:      req.ApprovalID,
		ApprovedBy:        req.ApprovedBy,
		Outcome:           entity.OutcomeSuccess,
		SnapshotReference: deployment.ID,
	}
	if _, err := uc.audit.Append(ctx, entry); err != nil {
		return nil, err
	}

	logger.LogGovernedAction(ctx, uc.logger, "content_deployed", deployment.DomainID, string(entity.OutcomeSuccess), map[string]interface{}{
		"deployment_id":       deployment.ID,
		"target":              deployment.Target,
		"rollback_expires_at": deployment.RollbackExpiresAt,
	})
	return deployment, nil
}

// Rollback claims the deployment's rollback and then restores its before
// state, so concurrent callers never restore twice. If the restore fails the
// claim is released and the attempt is audited as failed.
func (uc *DeploymentManagerUseCase) Rollback(ctx context.Context, deploymentID string, initiatedBy entity.Initiator) (*inbound.RollbackResult, error) {
	if initiatedBy == "" {
		initiatedBy = entity.InitiatorOperator
	}

	deployment, err := uc.Get(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	if err := deployment.CheckRollback(now); err != nil {
		uc.metrics.ObserveRollback("rejected")
		logger.LogPolicyEvent(ctx, uc.logger, "rollback_refused", "LOW", map[string]interface{}{
			"deployment_id":   deployment.ID,
			"rollback_status": deployment.RollbackStatus,
			"reason":          err.Error(),
		})
		return nil, err
	}

	swapped, err := uc.repo.TransitionRollbackStatus(ctx, deployment.ID, entity.RollbackAvailable, entity.RollbackUsed)
	if err != nil {
		return nil, storeErr("deployment claim rollback", err)
	}
	if !swapped {
		// a concurrent rollback or sweep claimed it first
		current, err := uc.repo.FindByID(ctx, deployment.ID)
		if err != nil {
			return nil, storeErr("deployment load", err)
		}
		uc.metrics.ObserveRollback("rejected")
		if checkErr := current.CheckRollback(now); checkErr != nil {
			return nil, checkErr
		}
		return nil, apperr.RollbackUsed(deployment.ID)
	}

	restoreCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	restoreErr := uc.publisher.Restore(restoreCtx, deployment.Target, deployment.StateBefore)
	cancel()
	if restoreErr != nil {
		// give the claim back so the rollback can be retried
		if _, err := uc.repo.TransitionRollbackStatus(ctx, deployment.ID, entity.RollbackUsed, entity.RollbackAvailable); err != nil {
			uc.logger.Error(ctx, "Could not release rollback claim", err, map[string]interface{}{
				"deployment_id": deployment.ID,
			})
		}
		uc.metrics.ObserveRollback("failed")
		uc.logger.Error(ctx, "Rollback restore failed", restoreErr, map[string]interface{}{
			"deployment_id": deployment.ID,
			"target":        deployment.Target,
		})
		_, auditErr := uc.audit.Append(ctx, entity.AuditEntry{
			DomainID:   deployment.DomainID,
			Timestamp:  now,
			ActionType: entity.ActionRollback,
			ActionDetail: entity.RollbackDetail{
				DeploymentID: deployment.ID,
				Target:       deployment.Target,
				Error:        restoreErr.Error(),
			},
			InitiatedBy:       initiatedBy,
			Outcome:           entity.OutcomeFailed,
			SnapshotReference: deployment.ID,
		})
		if auditErr != nil {
			return nil, auditErr
		}
		sendAlert(ctx, uc.notifier, uc.logger, outbound.Alert{
			Type:      outbound.AlertDeploymentFailed,
			DomainID:  deployment.DomainID,
			Subject:   "Rollback failed",
			Message:   "Restoring " + deployment.Target + " failed: " + restoreErr.Error(),
			Data:      map[string]interface{}{"deployment_id": deployment.ID},
			CreatedAt: now,
		})
		return nil, apperr.CollaboratorUnavailable("publishing", restoreErr)
	}
	deployment.RollbackStatus = entity.RollbackUsed

	entryID, err := uc.audit.Append(ctx, entity.AuditEntry{
		DomainID:   deployment.DomainID,
		Timestamp:  now,
		ActionType: entity.ActionRollback,
		ActionDetail: entity.RollbackDetail{
			DeploymentID: deployment.ID,
			Target:       deployment.Target,
		},
		InitiatedBy:       initiatedBy,
		ApprovalGate:      deployment.ApprovalID,
		Outcome:           entity.OutcomeRolledBack,
		SnapshotReference: deployment.ID,
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.ObserveRollback("success")
	logger.LogGovernedAction(ctx, uc.logger, "deployment_rolled_back", deployment.DomainID, string(entity.OutcomeRolledBack), map[string]interface{}{
		"deployment_id": deployment.ID,
		"target":        deployment.Target,
	})
	sendAlert(ctx, uc.notifier, uc.logger, outbound.Alert{
		Type:      outbound.AlertRollbackExecuted,
		DomainID:  deployment.DomainID,
		Subject:   "Deployment rolled back",
		Message:   "Restored previous content of " + deployment.Target,
		Data:      map[string]interface{}{"deployment_id": deployment.ID},
		CreatedAt: now,
	})

	return &inbound.RollbackResult{Deployment: deployment, AuditEntryID: entryID}, nil
}

// ExpireSweep moves every available deployment past its window to expired
func (uc *DeploymentManagerUseCase) ExpireSweep(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := uc.repo.ExpireDue(ctx, uc.now())
	if err != nil {
		return 0, storeErr("deployment expire sweep", err)
	}
	logger.LogPerformance(ctx, uc.logger, "rollback_expire_sweep", time.Since(start), map[string]interface{}{
		"expired": n,
	})
	return n, nil
}

// Get loads a deployment, persisting the expired status first if its window
// has closed since the last read.
func (uc *DeploymentManagerUseCase) Get(ctx context.Context, deploymentID string) (*entity.Deployment, error) {
	if deploymentID == "" {
		return nil, apperr.MissingField("deployment_id")
	}
	deployment, err := uc.repo.FindByID(ctx, deploymentID)
	if err != nil {
		return nil, storeErr("deployment load", err)
	}
	if deployment.ExpireIfDue(uc.now()) {
		if _, err := uc.repo.TransitionRollbackStatus(ctx, deployment.ID, entity.RollbackAvailable, entity.RollbackExpired); err != nil {
			return nil, storeErr("deployment expire", err)
		}
	}
	return deployment, nil
}

func (uc *DeploymentManagerUseCase) List(ctx context.Context, filter entity.DeploymentFilter) ([]*entity.Deployment, error) {
	if _, err := uc.repo.ExpireDue(ctx, uc.now()); err != nil {
		return nil, storeErr("deployment expire", err)
	}
	deployments, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, storeErr("deployment list", err)
	}
	return deployments, nil
}

// RecordScoreDelta stores the score change observed after the deployment
func (uc *DeploymentManagerUseCase) RecordScoreDelta(ctx context.Context, deploymentID string, delta float64) error {
	if _, err := uc.Get(ctx, deploymentID); err != nil {
		return err
	}
	if err := uc.repo.UpdateScoreDelta(ctx, deploymentID, delta); err != nil {
		return storeErr("deployment score delta", err)
	}
	return nil
}
