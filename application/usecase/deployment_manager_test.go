package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

func deployFAQ(t *testing.T, f *pipelineFixture) *entity.Deployment {
	t.Helper()
	deployment, err := f.deployments.Deploy(context.Background(), inbound.DeployRequest{
		DomainID:    testDomain,
		ActionType:  "brief",
		Target:      "/faq",
		BeforeState: "We ship worldwide.",
		AfterState:  "We ship to the EU and US only.",
		ApprovalID:  "a1",
		InitiatedBy: entity.InitiatorOperator,
	})
	require.NoError(t, err)
	return deployment
}

func TestDeploymentManager_DeployOpensWindow(t *testing.T) {
	f := newPipelineFixture(t)

	deployment := deployFAQ(t, f)
	assert.Equal(t, entity.RollbackAvailable, deployment.RollbackStatus)
	assert.Equal(t, testNow.Add(30*24*time.Hour), deployment.RollbackExpiresAt)
	assert.Contains(t, deployment.Diff, "+We ship to the EU and US only.")

	trail := f.auditTrail(t)
	require.Len(t, trail, 1)
	assert.Equal(t, entity.ActionContentDeployed, trail[0].ActionType)
	assert.Equal(t, deployment.ID, trail[0].SnapshotReference)
}

func TestDeploymentManager_RollbackOnce(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	deployment := deployFAQ(t, f)

	f.publisher.On("Restore", mock.Anything, "/faq", "We ship worldwide.").Return(nil).Once()
	f.clock.Advance(30 * 24 * time.Hour)

	result, err := f.deployments.Rollback(ctx, deployment.ID, entity.InitiatorOperator)
	require.NoError(t, err)
	assert.Equal(t, entity.RollbackUsed, result.Deployment.RollbackStatus)
	assert.NotEmpty(t, result.AuditEntryID)

	entry, err := f.audit.Get(ctx, result.AuditEntryID)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeRolledBack, entry.Outcome)
	assert.Len(t, f.notifier.ofType(outbound.AlertRollbackExecuted), 1)

	_, err = f.deployments.Rollback(ctx, deployment.ID, entity.InitiatorOperator)
	assert.True(t, errors.Is(err, apperr.ErrRollbackUsed))
	assert.False(t, errors.Is(err, apperr.ErrRollbackExpired))
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	f.publisher.AssertNumberOfCalls(t, "Restore", 1)
}

func TestDeploymentManager_RollbackAfterWindow(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	deployment := deployFAQ(t, f)

	f.clock.Advance(31 * 24 * time.Hour)

	_, err := f.deployments.Rollback(ctx, deployment.ID, entity.InitiatorOperator)
	assert.True(t, errors.Is(err, apperr.ErrRollbackExpired))
	assert.False(t, errors.Is(err, apperr.ErrRollbackUsed))
	f.publisher.AssertNotCalled(t, "Restore", mock.Anything, mock.Anything, mock.Anything)

	stored, err := f.deployments.Get(ctx, deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RollbackExpired, stored.RollbackStatus)
}

func TestDeploymentManager_RestoreFailureKeepsRollbackAvailable(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	deployment := deployFAQ(t, f)

	f.publisher.On("Restore", mock.Anything, "/faq", mock.Anything).Return(errors.New("cms timeout")).Once()

	_, err := f.deployments.Rollback(ctx, deployment.ID, entity.InitiatorOperator)
	assert.True(t, errors.Is(err, apperr.ErrCollaboratorUnavailable))
	assert.True(t, apperr.IsInfrastructureFailure(err))

	stored, err := f.deployments.Get(ctx, deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RollbackAvailable, stored.RollbackStatus)

	trail := f.auditTrail(t)
	assert.Equal(t, entity.ActionRollback, trail[0].ActionType)
	assert.Equal(t, entity.OutcomeFailed, trail[0].Outcome)
	assert.Len(t, f.notifier.ofType(outbound.AlertDeploymentFailed), 1)

	// a later retry can still succeed
	f.publisher.On("Restore", mock.Anything, "/faq", mock.Anything).Return(nil).Once()
	_, err = f.deployments.Rollback(ctx, deployment.ID, entity.InitiatorOperator)
	require.NoError(t, err)
}

func TestDeploymentManager_RollbackUnknown(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.deployments.Rollback(context.Background(), "missing", entity.InitiatorOperator)
	assert.True(t, errors.Is(err, apperr.ErrDeploymentNotFound))
}

func TestDeploymentManager_ExpireSweep(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	old := deployFAQ(t, f)
	f.clock.Advance(20 * 24 * time.Hour)
	fresh := deployFAQ(t, f)
	f.clock.Advance(11 * 24 * time.Hour)

	n, err := f.deployments.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	available := entity.RollbackAvailable
	list, err := f.deployments.List(ctx, entity.DeploymentFilter{DomainID: testDomain, RollbackStatus: &available})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fresh.ID, list[0].ID)

	stored, err := f.deployments.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RollbackExpired, stored.RollbackStatus)
	assert.Equal(t, old.RollbackExpiresAt, stored.RollbackExpiresAt)
}

func TestDeploymentManager_RecordScoreDelta(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	deployment := deployFAQ(t, f)

	require.NoError(t, f.deployments.RecordScoreDelta(ctx, deployment.ID, 4.5))

	stored, err := f.deployments.Get(ctx, deployment.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ScoreDelta)
	assert.InDelta(t, 4.5, *stored.ScoreDelta, 1e-9)
}

func TestDeploymentManager_ConcurrentRollbackRestoresOnce(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	deployment := deployFAQ(t, f)

	f.publisher.On("Restore", mock.Anything, "/faq", "We ship worldwide.").Return(nil).After(5 * time.Millisecond)

	const callers = 10
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.deployments.Rollback(ctx, deployment.ID, entity.InitiatorOperator)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err), err.Error())
		assert.True(t, errors.Is(err, apperr.ErrRollbackUsed))
	}
	assert.Equal(t, 1, succeeded)
	f.publisher.AssertNumberOfCalls(t, "Restore", 1)

	trail := f.auditTrail(t)
	rolledBack := 0
	for _, e := range trail {
		if e.ActionType == entity.ActionRollback && e.Outcome == entity.OutcomeRolledBack {
			rolledBack++
		}
	}
	assert.Equal(t, 1, rolledBack)
	assert.Len(t, f.notifier.ofType(outbound.AlertRollbackExecuted), 1)
}

// claimingDeployments lets another caller claim the rollback between the
// load and the claim
type claimingDeployments struct {
	outbound.DeploymentRepository
	once sync.Once
}

func (r *claimingDeployments) TransitionRollbackStatus(ctx context.Context, id string, from, to entity.RollbackStatus) (bool, error) {
	r.once.Do(func() {
		_, _ = r.DeploymentRepository.TransitionRollbackStatus(ctx, id, entity.RollbackAvailable, entity.RollbackUsed)
	})
	return r.DeploymentRepository.TransitionRollbackStatus(ctx, id, from, to)
}

func TestDeploymentManager_RollbackLosingClaimNeverRestores(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	deployment := deployFAQ(t, f)

	repo := &claimingDeployments{DeploymentRepository: f.store.Deployments()}
	manager := NewDeploymentManagerUseCase(repo, f.publisher, f.audit, f.notifier, nil, logger.NewNopLogger(), f.clock.Now, time.Second)

	_, err := manager.Rollback(ctx, deployment.ID, entity.InitiatorOperator)
	assert.True(t, errors.Is(err, apperr.ErrRollbackUsed))
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	f.publisher.AssertNotCalled(t, "Restore", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, countActions(f.auditTrail(t), entity.ActionRollback))
}
