package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAuditRepo_AppendOnlyAndNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Audit()

	for i, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, repo.Append(ctx, entity.AuditEntry{
			EntryID:    id,
			DomainID:   "d1",
			Timestamp:  testNow.Add(time.Duration(i) * time.Minute),
			ActionType: entity.ActionTicketOpened,
			Outcome:    entity.OutcomeSuccess,
		}))
	}
	require.NoError(t, repo.Append(ctx, entity.AuditEntry{EntryID: "other", DomainID: "d2"}))

	err := repo.Append(ctx, entity.AuditEntry{EntryID: "e1", DomainID: "d1", Notes: "rewrite"})
	assert.True(t, errors.Is(err, apperr.ErrAuditImmutable))

	entries, err := repo.ListByDomain(ctx, "d1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e3", entries[0].EntryID)
	assert.Equal(t, "e1", entries[2].EntryID)
	assert.Empty(t, entries[2].Notes)

	limited, err := repo.ListByDomain(ctx, "d1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestAuditRepo_ReturnedEntriesAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Audit()
	approvedAt := testNow

	require.NoError(t, repo.Append(ctx, entity.AuditEntry{
		EntryID:      "e1",
		DomainID:     "d1",
		ApprovedAt:   &approvedAt,
		ActionDetail: entity.OpaqueDetail{"k": "v"},
	}))

	got, err := repo.FindByID(ctx, "e1")
	require.NoError(t, err)
	*got.ApprovedAt = testNow.Add(time.Hour)
	got.ActionDetail.(entity.OpaqueDetail)["k"] = "changed"

	again, err := repo.FindByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, testNow, *again.ApprovedAt)
	assert.Equal(t, "v", again.ActionDetail.(entity.OpaqueDetail)["k"])
}

func TestApprovalRepo_SaveDecisionOnlyWhilePending(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Approvals()

	a := entity.NewApproval("a1", "d1", entity.ApprovalTypeBrief, "b1", entity.ItemKindBrief,
		entity.RiskHigh, "t", "d", "i", testNow)
	require.NoError(t, repo.Create(ctx, a))

	require.NoError(t, a.Decide(entity.DecisionApprove, "ops", testNow))
	require.NoError(t, repo.SaveDecision(ctx, a))

	second := entity.NewApproval("a1", "d1", entity.ApprovalTypeBrief, "b1", entity.ItemKindBrief,
		entity.RiskHigh, "t", "d", "i", testNow)
	require.NoError(t, second.Decide(entity.DecisionDecline, "someone-else", testNow.Add(time.Minute)))
	err := repo.SaveDecision(ctx, second)
	assert.True(t, errors.Is(err, apperr.ErrApprovalNotPending))

	stored, err := repo.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusApproved, stored.Status)
	assert.Equal(t, "ops", *stored.DecidedBy)
}

func TestDeploymentRepo_TransitionIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Deployments()

	d := entity.NewDeployment("dep1", "d1", "brief", "/faq", "old", "new", "a1", testNow)
	require.NoError(t, repo.Create(ctx, d))

	ok, err := repo.TransitionRollbackStatus(ctx, "dep1", entity.RollbackAvailable, entity.RollbackUsed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionRollbackStatus(ctx, "dep1", entity.RollbackAvailable, entity.RollbackUsed)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.TransitionRollbackStatus(ctx, "missing", entity.RollbackAvailable, entity.RollbackUsed)
	assert.True(t, errors.Is(err, apperr.ErrDeploymentNotFound))
}

func TestDeploymentRepo_ExpireDue(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Deployments()

	require.NoError(t, repo.Create(ctx, entity.NewDeployment("old", "d1", "brief", "/a", "", "x", "", testNow.Add(-40*24*time.Hour))))
	require.NoError(t, repo.Create(ctx, entity.NewDeployment("new", "d1", "brief", "/b", "", "y", "", testNow)))

	n, err := repo.ExpireDue(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	old, err := repo.FindByID(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, entity.RollbackExpired, old.RollbackStatus)

	fresh, err := repo.FindByID(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, entity.RollbackAvailable, fresh.RollbackStatus)
}

func TestTicketRepo_ListOrderedBySeverity(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Tickets()

	require.NoError(t, repo.Create(ctx, entity.NewHallucinationTicket("t1", "d1", "chatgpt", "q", "c", 3, testNow)))
	require.NoError(t, repo.Create(ctx, entity.NewHallucinationTicket("t2", "d1", "chatgpt", "q", "c", 9, testNow)))
	require.NoError(t, repo.Create(ctx, entity.NewHallucinationTicket("t3", "d1", "chatgpt", "q", "c", 6, testNow)))

	tickets, err := repo.List(ctx, entity.TicketFilter{DomainID: "d1"})
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	assert.Equal(t, []string{"t2", "t3", "t1"}, []string{tickets[0].ID, tickets[1].ID, tickets[2].ID})
}

func TestTicketRepo_SaveTransitionRejectsStaleStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Tickets()

	ticket := entity.NewHallucinationTicket("t1", "d1", "chatgpt", "q", "c", 5, testNow)
	require.NoError(t, repo.Create(ctx, ticket))

	require.NoError(t, ticket.Advance(entity.TicketStatusSuppressed, "", testNow))
	require.NoError(t, repo.SaveTransition(ctx, ticket, entity.TicketStatusOpen))

	err := repo.SaveTransition(ctx, ticket, entity.TicketStatusOpen)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestBudgetRepo_SumSinceIsInclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().BudgetLedger()
	since := testNow.Add(-entity.BudgetWindow)

	require.NoError(t, repo.Append(ctx, entity.BudgetLedgerEntry{ID: "1", DomainID: "d1", Cost: 5, IncurredAt: since}))
	require.NoError(t, repo.Append(ctx, entity.BudgetLedgerEntry{ID: "2", DomainID: "d1", Cost: 7, IncurredAt: since.Add(-time.Second)}))
	require.NoError(t, repo.Append(ctx, entity.BudgetLedgerEntry{ID: "3", DomainID: "d2", Cost: 11, IncurredAt: testNow}))

	total, err := repo.SumSince(ctx, "d1", since)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, total, 1e-9)
}

func TestKeywordRepo_MarkApproved(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.TrackKeyword("kw1")

	require.NoError(t, store.Keywords().MarkApproved(ctx, "kw1"))
	assert.True(t, store.KeywordApproved("kw1"))
	assert.Error(t, store.Keywords().MarkApproved(ctx, "unknown"))
}
