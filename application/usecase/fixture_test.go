package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	"github.com/brandpilot/brandpilot/infrastructure/adapter/memory"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Mock implementations

type MockApplier struct {
	mock.Mock
}

func (m *MockApplier) Apply(ctx context.Context, itemReference string) (*outbound.ApplyResult, error) {
	args := m.Called(ctx, itemReference)
	if fn, ok := args.Get(0).(func(context.Context, string) *outbound.ApplyResult); ok {
		return fn(ctx, itemReference), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.ApplyResult), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, target, content string) (*outbound.PublishResult, error) {
	args := m.Called(ctx, target, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.PublishResult), args.Error(1)
}

func (m *MockPublisher) Restore(ctx context.Context, target, beforeState string) error {
	args := m.Called(ctx, target, beforeState)
	return args.Error(0)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req outbound.BriefRequest) (*outbound.BriefDraft, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.BriefDraft), args.Error(1)
}

type MockSpendLocker struct {
	mock.Mock
}

func (m *MockSpendLocker) Lock(ctx context.Context, domainID string) (func(), error) {
	args := m.Called(ctx, domainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

// recordingNotifier keeps every alert so tests can assert on them
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []outbound.Alert
}

func (n *recordingNotifier) Notify(ctx context.Context, alert outbound.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *recordingNotifier) ofType(t outbound.AlertType) []outbound.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := []outbound.Alert{}
	for _, a := range n.alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// testClock starts at testNow and only moves when told to
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: testNow} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type pipelineFixture struct {
	store     *memory.Store
	clock     *testClock
	notifier  *recordingNotifier
	applier   *MockApplier
	publisher *MockPublisher
	generator *MockGenerator

	audit       *AuditLedgerUseCase
	budget      *BudgetGovernorUseCase
	gate        *ApprovalGateUseCase
	deployments *DeploymentManagerUseCase
	tickets     *TicketTrackerUseCase
	coordinator *ActionCoordinatorUseCase
}

const testDomain = "d1"

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		store:     memory.NewStore(),
		clock:     newTestClock(),
		notifier:  &recordingNotifier{},
		applier:   new(MockApplier),
		publisher: new(MockPublisher),
		generator: new(MockGenerator),
	}
	log := logger.NewNopLogger()

	require.NoError(t, f.store.Domains().Upsert(context.Background(), &entity.Domain{
		ID:           testDomain,
		Name:         "Acme",
		WeeklyBudget: 50.00,
		CreatedAt:    testNow,
	}))

	registry := NewApplierRegistry()
	registry.Register(entity.ItemKindBrief, f.applier)
	registry.Register(entity.ItemKindKeyword, f.applier)

	f.audit = NewAuditLedgerUseCase(f.store.Audit(), log, f.clock.Now)
	f.budget = NewBudgetGovernorUseCase(f.store.Domains(), f.store.BudgetLedger(), f.notifier, nil, log, f.clock.Now)
	f.gate = NewApprovalGateUseCase(f.store.Approvals(), registry, f.audit, nil, log, f.clock.Now)
	f.deployments = NewDeploymentManagerUseCase(f.store.Deployments(), f.publisher, f.audit, f.notifier, nil, log, f.clock.Now, time.Second)
	f.tickets = NewTicketTrackerUseCase(f.store.Tickets(), f.audit, f.notifier, log, f.clock.Now)
	f.coordinator = NewActionCoordinatorUseCase(CoordinatorDeps{
		Gate:        f.gate,
		Budget:      f.budget,
		Deployments: f.deployments,
		Tickets:     f.tickets,
		Audit:       f.audit,
		Generator:   f.generator,
		Publisher:   f.publisher,
		Briefs:      f.store.Briefs(),
		Notifier:    f.notifier,
		Logger:      log,
		Clock:       f.clock.Now,
		Timeout:     time.Second,
	})
	return f
}

func (f *pipelineFixture) auditTrail(t *testing.T) []entity.AuditEntry {
	t.Helper()
	entries, err := f.audit.Read(context.Background(), testDomain, 1000)
	require.NoError(t, err)
	return entries
}

func countActions(entries []entity.AuditEntry, action entity.ActionType) int {
	n := 0
	for _, e := range entries {
		if e.ActionType == action {
			n++
		}
	}
	return n
}
