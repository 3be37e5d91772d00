package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
)

// These tests need a disposable database:
//
//	TEST_DATABASE_URL=postgres://localhost/brandpilot_test?sslmode=disable go test ./infrastructure/adapter/postgres/...
func setupStore(t *testing.T) (*Store, string) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db))

	store := NewStore(db)
	domainID := "test-" + uuid.NewString()
	require.NoError(t, store.Domains().Upsert(ctx, &entity.Domain{
		ID:           domainID,
		Name:         "Acme",
		WeeklyBudget: 50,
		CreatedAt:    time.Now().UTC(),
	}))
	return store, domainID
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAuditRepository_AppendOnly(t *testing.T) {
	store, domainID := setupStore(t)
	ctx := context.Background()
	repo := store.Audit()

	entry := entity.AuditEntry{
		EntryID:      uuid.NewString(),
		DomainID:     domainID,
		Timestamp:    base,
		ActionType:   entity.ActionApprovalDecided,
		ActionDetail: entity.ApprovalDetail{ApprovalID: "a1", ItemKind: entity.ItemKindBrief, RiskLevel: entity.RiskHigh},
		InitiatedBy:  entity.InitiatorOperator,
		ApprovedBy:   "ops@acme",
		Outcome:      entity.OutcomeSuccess,
	}
	require.NoError(t, repo.Append(ctx, entry))

	err := repo.Append(ctx, entry)
	assert.True(t, errors.Is(err, apperr.ErrAuditImmutable))

	_, err = store.DB().ExecContext(ctx, `UPDATE audit_entries SET outcome = 'failed' WHERE entry_id = $1`, entry.EntryID)
	assert.True(t, errors.Is(mapError("update audit", err), apperr.ErrAuditImmutable))
	_, err = store.DB().ExecContext(ctx, `DELETE FROM audit_entries WHERE entry_id = $1`, entry.EntryID)
	assert.True(t, errors.Is(mapError("delete audit", err), apperr.ErrAuditImmutable))

	stored, err := repo.FindByID(ctx, entry.EntryID)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeSuccess, stored.Outcome)
	detail, ok := stored.ActionDetail.(entity.ApprovalDetail)
	require.True(t, ok)
	assert.Equal(t, entity.RiskHigh, detail.RiskLevel)
}

func TestAuditRepository_ListNewestFirst(t *testing.T) {
	store, domainID := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Audit().Append(ctx, entity.AuditEntry{
			EntryID:      uuid.NewString(),
			DomainID:     domainID,
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			ActionType:   entity.ActionTicketOpened,
			ActionDetail: entity.OpaqueDetail{"i": i},
			InitiatedBy:  entity.InitiatorAgent,
			Outcome:      entity.OutcomeSuccess,
		}))
	}

	entries, err := store.Audit().ListByDomain(ctx, domainID, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, base.Add(2*time.Minute), entries[0].Timestamp)
	assert.Equal(t, base.Add(time.Minute), entries[1].Timestamp)
}

func TestApprovalRepository_SaveDecisionOnlyWhilePending(t *testing.T) {
	store, domainID := setupStore(t)
	ctx := context.Background()
	repo := store.Approvals()

	approval := entity.NewApproval(uuid.NewString(), domainID, entity.ApprovalTypeKeyword, "kw1",
		entity.ItemKindKeyword, entity.RiskLow, "t", "", "", base)
	require.NoError(t, repo.Create(ctx, approval))

	first := *approval
	require.NoError(t, first.Decide(entity.DecisionApprove, "alice", base.Add(time.Minute)))
	require.NoError(t, repo.SaveDecision(ctx, &first))

	second := *approval
	require.NoError(t, second.Decide(entity.DecisionDecline, "bob", base.Add(time.Hour)))
	err := repo.SaveDecision(ctx, &second)
	assert.True(t, errors.Is(err, apperr.ErrApprovalNotPending))

	stored, err := repo.FindByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusApproved, stored.Status)
	assert.Equal(t, "alice", *stored.DecidedBy)

	_, err = repo.FindByID(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrApprovalNotFound))
}

func TestDeploymentRepository_RollbackTransitions(t *testing.T) {
	store, domainID := setupStore(t)
	ctx := context.Background()
	repo := store.Deployments()

	d := entity.NewDeployment(uuid.NewString(), domainID, "brief", "/faq", "old", "new", "", base)
	require.NoError(t, repo.Create(ctx, d))

	ok, err := repo.TransitionRollbackStatus(ctx, d.ID, entity.RollbackAvailable, entity.RollbackUsed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionRollbackStatus(ctx, d.ID, entity.RollbackAvailable, entity.RollbackUsed)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.TransitionRollbackStatus(ctx, "missing", entity.RollbackAvailable, entity.RollbackUsed)
	assert.True(t, errors.Is(err, apperr.ErrDeploymentNotFound))
}

func TestDeploymentRepository_ExpireDue(t *testing.T) {
	store, domainID := setupStore(t)
	ctx := context.Background()
	repo := store.Deployments()

	old := entity.NewDeployment(uuid.NewString(), domainID, "brief", "/a", "", "x", "", base)
	fresh := entity.NewDeployment(uuid.NewString(), domainID, "brief", "/b", "", "y", "", base.Add(20*24*time.Hour))
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	n, err := repo.ExpireDue(ctx, base.Add(31*24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	stored, err := repo.FindByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RollbackExpired, stored.RollbackStatus)

	stored, err = repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RollbackAvailable, stored.RollbackStatus)

	require.NoError(t, repo.UpdateScoreDelta(ctx, fresh.ID, 3.5))
	stored, err = repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, *stored.ScoreDelta, 1e-9)
}

func TestTicketRepository_SaveTransitionComparesStatus(t *testing.T) {
	store, domainID := setupStore(t)
	ctx := context.Background()
	repo := store.Tickets()

	ticket := entity.NewHallucinationTicket(uuid.NewString(), domainID, "chatgpt", "q", "claim", 9, base)
	require.NoError(t, repo.Create(ctx, ticket))

	advanced := *ticket
	require.NoError(t, advanced.Advance(entity.TicketStatusSuppressed, "dup", base.Add(time.Hour)))
	require.NoError(t, repo.SaveTransition(ctx, &advanced, entity.TicketStatusOpen))

	stale := *ticket
	require.NoError(t, stale.Advance(entity.TicketStatusBriefGenerated, "", base.Add(2*time.Hour)))
	err := repo.SaveTransition(ctx, &stale, entity.TicketStatusOpen)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	stored, err := repo.FindByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusSuppressed, stored.Status)
	assert.Equal(t, base.Add(time.Hour), *stored.ClosedAt)
}

func TestBudgetLedger_SumSinceInclusive(t *testing.T) {
	store, domainID := setupStore(t)
	ctx := context.Background()
	ledger := store.BudgetLedger()

	for _, at := range []time.Time{base.Add(-8 * 24 * time.Hour), base.Add(-7 * 24 * time.Hour), base} {
		require.NoError(t, ledger.Append(ctx, entity.BudgetLedgerEntry{
			ID:         uuid.NewString(),
			DomainID:   domainID,
			Provider:   "openai",
			Cost:       10,
			IncurredAt: at,
		}))
	}

	total, err := ledger.SumSince(ctx, domainID, entity.WindowStart(base))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, total, 1e-9)
}

func TestKeywordRepository_MarkApproved(t *testing.T) {
	store, domainID := setupStore(t)
	ctx := context.Background()
	repo := &KeywordRepository{db: store.DB()}

	id := uuid.NewString()
	require.NoError(t, repo.Track(ctx, id, domainID, "acme shipping"))
	require.NoError(t, repo.MarkApproved(ctx, id))

	var status string
	require.NoError(t, store.DB().QueryRowContext(ctx, `SELECT status FROM keywords WHERE id = $1`, id).Scan(&status))
	assert.Equal(t, "approved", status)

	err := repo.MarkApproved(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrInvalidRequest))
}

func TestMapError_WrapsDriverErrors(t *testing.T) {
	assert.Nil(t, mapError("op", nil))
	err := mapError("op", sql.ErrConnDone)
	assert.True(t, errors.Is(err, apperr.ErrPersistence))
}
