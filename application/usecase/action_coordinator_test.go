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
)

func briefDraft(cost float64) *outbound.BriefDraft {
	return &outbound.BriefDraft{
		Title:   "Where Acme ships",
		Content: "Acme ships to the EU and US only.",
		Engine:  "openai:gpt-4o-mini",
		Cost:    outbound.CostEvent{Provider: "openai", Amount: cost, Description: "brief draft"},
	}
}

// applyBriefFrom makes the mock applier resolve brief ids the way the real
// brief applier does.
func applyBriefFrom(f *pipelineFixture) {
	f.applier.On("Apply", mock.Anything, mock.AnythingOfType("string")).Return(
		func(ctx context.Context, ref string) *outbound.ApplyResult {
			brief, err := f.store.Briefs().FindByID(ctx, ref)
			if err != nil {
				return nil
			}
			return &outbound.ApplyResult{ItemReference: ref, Target: brief.Target, Content: brief.Content}
		}, nil)
}

func TestActionCoordinator_EndToEnd(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	step := func() { f.clock.Advance(time.Minute) }

	ticket := openTicket(t, f, 9)
	step()

	f.generator.On("Generate", mock.Anything, mock.MatchedBy(func(req outbound.BriefRequest) bool {
		return req.TicketID == ticket.ID && req.FalseClaim == ticket.FalseClaim
	})).Return(briefDraft(2.50), nil).Once()

	generated, err := f.coordinator.GenerateBrief(ctx, inbound.GenerateBriefRequest{
		DomainID: testDomain,
		TicketID: ticket.ID,
		Priority: "high",
		Target:   "/faq/shipping",
	})
	require.NoError(t, err)
	require.Equal(t, inbound.ExecutionApplied, generated.Outcome)
	assert.Equal(t, entity.RiskHigh, generated.Approval.RiskLevel)
	assert.Equal(t, entity.ApprovalStatusPending, generated.Approval.Status)
	assert.Equal(t, entity.TicketStatusBriefGenerated, generated.Ticket.Status)
	assert.Equal(t, generated.Brief.ID, *generated.Ticket.AssignedBriefReference)

	spend, err := f.budget.WeeklySpend(ctx, testDomain)
	require.NoError(t, err)
	assert.InDelta(t, 2.50, spend, 1e-9)
	step()

	applyBriefFrom(f)
	f.publisher.On("Publish", mock.Anything, "/faq/shipping", "Acme ships to the EU and US only.").
		Return(&outbound.PublishResult{StateBefore: "Acme ships worldwide.", StateAfter: "Acme ships to the EU and US only."}, nil).Once()

	executed, err := f.coordinator.Execute(ctx, generated.Approval.ID, "ops@acme")
	require.NoError(t, err)
	require.Equal(t, inbound.ExecutionApplied, executed.Outcome, executed.Reason)
	assert.Equal(t, entity.ApprovalStatusApproved, executed.Approval.Status)
	require.NotNil(t, executed.Deployment)
	assert.Equal(t, entity.RollbackAvailable, executed.Deployment.RollbackStatus)
	assert.Equal(t, f.clock.Now().Add(entity.RollbackWindow), executed.Deployment.RollbackExpiresAt)
	require.NotNil(t, executed.Ticket)
	assert.Equal(t, entity.TicketStatusContentDeployed, executed.Ticket.Status)
	step()

	closed, err := f.coordinator.Verify(ctx, ticket.ID, "chatgpt now answers EU and US only")
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusVerifiedClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, f.clock.Now(), *closed.ClosedAt)

	trail := f.auditTrail(t)
	assert.Equal(t, 1, countActions(trail, entity.ActionTicketOpened))
	assert.Equal(t, 1, countActions(trail, entity.ActionBriefGenerated))
	assert.Equal(t, 1, countActions(trail, entity.ActionApprovalCreated))
	assert.Equal(t, 1, countActions(trail, entity.ActionApprovalDecided))
	assert.Equal(t, 1, countActions(trail, entity.ActionContentDeployed))
	assert.Equal(t, 3, countActions(trail, entity.ActionTicketAdvanced))
	assert.Zero(t, countActions(trail, entity.ActionExecutionBlocked))
	assert.Len(t, trail, 8)

	// trail is newest first, so timestamps never increase going down it
	for i := 1; i < len(trail); i++ {
		assert.False(t, trail[i].Timestamp.After(trail[i-1].Timestamp), "entry %d out of order", i)
	}

	assert.Len(t, f.notifier.ofType(outbound.AlertHallucinationSevere), 1)
	f.generator.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestActionCoordinator_GenerateBriefBlockedByBudget(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.budget.TrackCost(ctx, testDomain, "openai", 50.00, "earlier spend"))

	result, err := f.coordinator.GenerateBrief(ctx, inbound.GenerateBriefRequest{
		DomainID: testDomain,
		Priority: "medium",
		Target:   "/about",
	})
	require.NoError(t, err)
	assert.Equal(t, inbound.ExecutionRejected, result.Outcome)
	assert.True(t, errors.Is(result.Err, apperr.ErrBudgetExceeded))
	f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

	trail := f.auditTrail(t)
	require.NotEmpty(t, trail)
	assert.Equal(t, entity.ActionExecutionBlocked, trail[0].ActionType)
	assert.Equal(t, entity.OutcomeFailed, trail[0].Outcome)
	assert.Equal(t, "generate_brief", trail[0].ActionDetail.(entity.BlockedDetail).Stage)
}

func TestActionCoordinator_GenerateBriefEnginesExhausted(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	ticket := openTicket(t, f, 4)

	f.generator.On("Generate", mock.Anything, mock.Anything).
		Return(nil, apperr.CollaboratorUnavailable("content-engine", errors.New("all engines failed"))).Once()

	result, err := f.coordinator.GenerateBrief(ctx, inbound.GenerateBriefRequest{
		DomainID: testDomain,
		TicketID: ticket.ID,
		Priority: "low",
		Target:   "/faq",
	})
	require.NoError(t, err)
	assert.Equal(t, inbound.ExecutionFailed, result.Outcome)
	assert.True(t, apperr.IsInfrastructureFailure(result.Err))
	assert.Nil(t, result.Approval)

	stored, err := f.tickets.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusOpen, stored.Status)

	spend, err := f.budget.WeeklySpend(ctx, testDomain)
	require.NoError(t, err)
	assert.Zero(t, spend)
}

func TestActionCoordinator_ExecutePublishFailure(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	f.generator.On("Generate", mock.Anything, mock.Anything).Return(briefDraft(1.00), nil).Once()
	generated, err := f.coordinator.GenerateBrief(ctx, inbound.GenerateBriefRequest{DomainID: testDomain, Priority: "critical", Target: "/faq"})
	require.NoError(t, err)
	assert.Equal(t, entity.RiskCritical, generated.Approval.RiskLevel)

	applyBriefFrom(f)
	f.publisher.On("Publish", mock.Anything, "/faq", mock.Anything).Return(nil, context.DeadlineExceeded).Once()

	result, err := f.coordinator.Execute(ctx, generated.Approval.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, inbound.ExecutionFailed, result.Outcome)
	assert.True(t, errors.Is(result.Err, apperr.ErrCollaboratorUnavailable))
	assert.Nil(t, result.Deployment)

	// the decision is recorded even though nothing was published
	approval, err := f.gate.Get(ctx, generated.Approval.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusApproved, approval.Status)

	deployments, err := f.deployments.List(ctx, entity.DeploymentFilter{DomainID: testDomain})
	require.NoError(t, err)
	assert.Empty(t, deployments)
	assert.Len(t, f.notifier.ofType(outbound.AlertDeploymentFailed), 1)
}

func TestActionCoordinator_ExecuteTwiceIsRejected(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	approval, err := f.coordinator.Propose(ctx, inbound.ProposedAction{
		DomainID:      testDomain,
		ApprovalType:  entity.ApprovalTypeKeyword,
		ItemKind:      entity.ItemKindKeyword,
		ItemReference: "kw1",
		Priority:      "whenever",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RiskMedium, approval.RiskLevel)

	f.applier.On("Apply", mock.Anything, "kw1").Return(&outbound.ApplyResult{ItemReference: "kw1", Message: "tracked"}, nil).Once()

	first, err := f.coordinator.Execute(ctx, approval.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, inbound.ExecutionApplied, first.Outcome)
	assert.Nil(t, first.Deployment)

	second, err := f.coordinator.Execute(ctx, approval.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, inbound.ExecutionRejected, second.Outcome)
	f.applier.AssertNumberOfCalls(t, "Apply", 1)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestActionCoordinator_DeclineAndUnknown(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	approval, err := f.coordinator.Propose(ctx, inbound.ProposedAction{
		DomainID:      testDomain,
		ApprovalType:  entity.ApprovalTypeKeyword,
		ItemKind:      entity.ItemKindKeyword,
		ItemReference: "kw9",
		Priority:      "low",
	})
	require.NoError(t, err)

	declined, err := f.coordinator.Decline(ctx, approval.ID, "ops", "not relevant")
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusDeclined, declined.Status)

	result, err := f.coordinator.Execute(ctx, approval.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, inbound.ExecutionRejected, result.Outcome)
	f.applier.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)

	_, err = f.coordinator.Execute(ctx, "missing", "ops")
	assert.True(t, errors.Is(err, apperr.ErrApprovalNotFound))
}

func TestActionCoordinator_RollbackAfterExecute(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	f.generator.On("Generate", mock.Anything, mock.Anything).Return(briefDraft(0.40), nil).Once()
	generated, err := f.coordinator.GenerateBrief(ctx, inbound.GenerateBriefRequest{DomainID: testDomain, Priority: "high", Target: "/pricing"})
	require.NoError(t, err)

	applyBriefFrom(f)
	f.publisher.On("Publish", mock.Anything, "/pricing", mock.Anything).
		Return(&outbound.PublishResult{StateBefore: "old pricing", StateAfter: "new pricing"}, nil).Once()
	executed, err := f.coordinator.Execute(ctx, generated.Approval.ID, "ops")
	require.NoError(t, err)
	require.NotNil(t, executed.Deployment)

	f.publisher.On("Restore", mock.Anything, "/pricing", "old pricing").Return(nil).Once()
	rolled, err := f.coordinator.Rollback(ctx, executed.Deployment.ID, entity.InitiatorVoice)
	require.NoError(t, err)
	assert.Equal(t, entity.RollbackUsed, rolled.Deployment.RollbackStatus)

	entry, err := f.audit.Get(ctx, rolled.AuditEntryID)
	require.NoError(t, err)
	assert.Equal(t, entity.InitiatorVoice, entry.InitiatedBy)
}

func TestActionCoordinator_BulkExecuteDeploysBriefs(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	ticket := openTicket(t, f, 5)

	f.generator.On("Generate", mock.Anything, mock.Anything).Return(briefDraft(0.50), nil).Once()
	generated, err := f.coordinator.GenerateBrief(ctx, inbound.GenerateBriefRequest{
		DomainID: testDomain,
		TicketID: ticket.ID,
		Priority: "medium",
		Target:   "/faq/shipping",
	})
	require.NoError(t, err)

	keyword, err := f.coordinator.Propose(ctx, inbound.ProposedAction{
		DomainID:      testDomain,
		ApprovalType:  entity.ApprovalTypeKeyword,
		ItemKind:      entity.ItemKindKeyword,
		ItemReference: "kw1",
		Priority:      "low",
	})
	require.NoError(t, err)

	applyBriefFrom(f)
	f.publisher.On("Publish", mock.Anything, "/faq/shipping", mock.Anything).
		Return(&outbound.PublishResult{StateBefore: "Acme ships worldwide.", StateAfter: "Acme ships to the EU and US only."}, nil).Once()

	bulk, err := f.coordinator.BulkExecute(ctx, testDomain, entity.ApprovalTypeBrief, "ops")
	require.NoError(t, err)
	assert.Equal(t, 1, bulk.Applied)
	require.Len(t, bulk.Results, 1)

	executed := bulk.Results[0]
	assert.Equal(t, inbound.ExecutionApplied, executed.Outcome, executed.Reason)
	assert.Equal(t, generated.Approval.ID, executed.Approval.ID)
	require.NotNil(t, executed.Deployment)
	assert.Equal(t, generated.Approval.ID, executed.Deployment.ApprovalID)
	require.NotNil(t, executed.Ticket)
	assert.Equal(t, entity.TicketStatusContentDeployed, executed.Ticket.Status)

	// other approval types are left for their own bulk run
	untouched, err := f.gate.Get(ctx, keyword.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusPending, untouched.Status)

	again, err := f.coordinator.BulkExecute(ctx, testDomain, entity.ApprovalTypeBrief, "ops")
	require.NoError(t, err)
	assert.Zero(t, again.Applied)
	assert.Empty(t, again.Results)
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)

	_, err = f.coordinator.BulkExecute(ctx, "", entity.ApprovalTypeBrief, "ops")
	assert.True(t, errors.Is(err, apperr.ErrInvalidRequest))
}

func TestActionCoordinator_ExecuteResumesGateBulkApprove(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	ticket := openTicket(t, f, 6)

	f.generator.On("Generate", mock.Anything, mock.Anything).Return(briefDraft(0.50), nil).Once()
	generated, err := f.coordinator.GenerateBrief(ctx, inbound.GenerateBriefRequest{
		DomainID: testDomain,
		TicketID: ticket.ID,
		Priority: "high",
		Target:   "/faq",
	})
	require.NoError(t, err)
	applyBriefFrom(f)

	count, err := f.gate.BulkApprove(ctx, testDomain, entity.ApprovalTypeBrief, "lead")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)

	f.clock.Advance(time.Minute)
	f.publisher.On("Publish", mock.Anything, "/faq", mock.Anything).
		Return(&outbound.PublishResult{StateBefore: "old", StateAfter: "new"}, nil).Once()

	resumed, err := f.coordinator.Execute(ctx, generated.Approval.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, inbound.ExecutionApplied, resumed.Outcome, resumed.Reason)
	require.NotNil(t, resumed.Deployment)
	require.NotNil(t, resumed.Ticket)
	assert.Equal(t, entity.TicketStatusContentDeployed, resumed.Ticket.Status)

	trail := f.auditTrail(t)
	assert.Equal(t, 1, countActions(trail, entity.ActionApprovalDecided))
	require.Equal(t, entity.ActionTicketAdvanced, trail[0].ActionType)
	require.Equal(t, entity.ActionContentDeployed, trail[1].ActionType)
	// the deployment credits whoever actually approved it
	assert.Equal(t, "lead", trail[1].ApprovedBy)

	done, err := f.coordinator.Execute(ctx, generated.Approval.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, inbound.ExecutionRejected, done.Outcome)
	assert.Equal(t, "approval already approved", done.Reason)
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestActionCoordinator_ExecuteResumesOnceBudgetFrees(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	f.generator.On("Generate", mock.Anything, mock.Anything).Return(briefDraft(1.00), nil).Once()
	generated, err := f.coordinator.GenerateBrief(ctx, inbound.GenerateBriefRequest{DomainID: testDomain, Priority: "medium", Target: "/about"})
	require.NoError(t, err)
	require.NoError(t, f.budget.TrackCost(ctx, testDomain, "openai", 49.00, "crawl batch"))
	applyBriefFrom(f)

	blocked, err := f.coordinator.Execute(ctx, generated.Approval.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, inbound.ExecutionRejected, blocked.Outcome)
	assert.True(t, errors.Is(blocked.Err, apperr.ErrBudgetExceeded))
	assert.Equal(t, entity.ApprovalStatusApproved, blocked.Approval.Status)
	assert.Nil(t, blocked.Deployment)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)

	// still over budget: resuming is blocked the same way
	stillBlocked, err := f.coordinator.Execute(ctx, generated.Approval.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, inbound.ExecutionRejected, stillBlocked.Outcome)
	assert.True(t, errors.Is(stillBlocked.Err, apperr.ErrBudgetExceeded))

	// both charges leave the rolling window
	f.clock.Advance(8 * 24 * time.Hour)
	f.publisher.On("Publish", mock.Anything, "/about", mock.Anything).
		Return(&outbound.PublishResult{StateBefore: "old about", StateAfter: "new about"}, nil).Once()

	resumed, err := f.coordinator.Execute(ctx, generated.Approval.ID, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, inbound.ExecutionApplied, resumed.Outcome, resumed.Reason)
	require.NotNil(t, resumed.Deployment)
	assert.Equal(t, generated.Approval.ID, resumed.Deployment.ApprovalID)
	assert.Equal(t, "ops", *resumed.Approval.DecidedBy)

	trail := f.auditTrail(t)
	assert.Equal(t, 1, countActions(trail, entity.ActionApprovalDecided))
	assert.Equal(t, 2, countActions(trail, entity.ActionExecutionBlocked))
	assert.Equal(t, 1, countActions(trail, entity.ActionContentDeployed))
	f.publisher.AssertExpectations(t)
}

func TestActionCoordinator_ConcurrentExecutePublishesOnce(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	f.generator.On("Generate", mock.Anything, mock.Anything).Return(briefDraft(0.25), nil).Once()
	generated, err := f.coordinator.GenerateBrief(ctx, inbound.GenerateBriefRequest{DomainID: testDomain, Priority: "low", Target: "/faq"})
	require.NoError(t, err)
	applyBriefFrom(f)
	f.publisher.On("Publish", mock.Anything, "/faq", mock.Anything).
		Return(&outbound.PublishResult{StateBefore: "a", StateAfter: "b"}, nil)

	const callers = 8
	results := make(chan *inbound.ExecutionResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.coordinator.Execute(ctx, generated.Approval.ID, "ops")
			if assert.NoError(t, err) {
				results <- result
			}
		}()
	}
	wg.Wait()
	close(results)

	applied := 0
	for result := range results {
		if result.Outcome == inbound.ExecutionApplied {
			applied++
			continue
		}
		assert.Equal(t, inbound.ExecutionRejected, result.Outcome)
	}
	assert.Equal(t, 1, applied)
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)

	deployments, err := f.deployments.List(ctx, entity.DeploymentFilter{ApprovalID: generated.Approval.ID})
	require.NoError(t, err)
	assert.Len(t, deployments, 1)
}
