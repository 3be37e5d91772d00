// Package bootstrap assembles the governed action pipeline from a store and
// its collaborators.
package bootstrap

import (
	"context"
	"time"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/application/usecase"
	"github.com/brandpilot/brandpilot/domain/entity"
	"github.com/brandpilot/brandpilot/infrastructure/config"
	"github.com/brandpilot/brandpilot/infrastructure/service/applier"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

// Repositories is satisfied by both the postgres and the memory store
type Repositories interface {
	Approvals() outbound.ApprovalRepository
	Audit() outbound.AuditRepository
	BudgetLedger() outbound.BudgetLedgerRepository
	Domains() outbound.DomainRepository
	Deployments() outbound.DeploymentRepository
	Tickets() outbound.TicketRepository
	Briefs() outbound.BriefRepository
	Keywords() outbound.KeywordRepository
}

type Collaborators struct {
	Generator outbound.ContentGenerator
	Publisher outbound.PublishingBackend
	Notifier  outbound.Notifier
	Metrics   outbound.PipelineMetrics

	// Locker enables hard cap mode when set. It also serializes executions
	// of one approval across processes.
	Locker outbound.SpendLocker
}

type Pipeline struct {
	Audit       *usecase.AuditLedgerUseCase
	Budget      *usecase.BudgetGovernorUseCase
	Gate        *usecase.ApprovalGateUseCase
	Deployments *usecase.DeploymentManagerUseCase
	Tickets     *usecase.TicketTrackerUseCase
	Coordinator *usecase.ActionCoordinatorUseCase
}

// NewPipeline builds every service over repos. clock may be nil.
func NewPipeline(repos Repositories, collab Collaborators, log logger.Logger, clock usecase.Clock, timeout time.Duration) *Pipeline {
	appliers := usecase.NewApplierRegistry()
	appliers.Register(entity.ItemKindBrief, applier.NewBriefApplier(repos.Briefs()))
	appliers.Register(entity.ItemKindKeyword, applier.NewKeywordApplier(repos.Keywords()))

	audit := usecase.NewAuditLedgerUseCase(repos.Audit(), log, clock)
	budget := usecase.NewBudgetGovernorUseCase(repos.Domains(), repos.BudgetLedger(), collab.Notifier, collab.Metrics, log, clock)
	if collab.Locker != nil {
		budget.EnableHardCap(collab.Locker)
	}
	gate := usecase.NewApprovalGateUseCase(repos.Approvals(), appliers, audit, collab.Metrics, log, clock)
	deployments := usecase.NewDeploymentManagerUseCase(repos.Deployments(), collab.Publisher, audit, collab.Notifier, collab.Metrics, log, clock, timeout)
	tickets := usecase.NewTicketTrackerUseCase(repos.Tickets(), audit, collab.Notifier, log, clock)

	coordinator := usecase.NewActionCoordinatorUseCase(usecase.CoordinatorDeps{
		Gate:        gate,
		Budget:      budget,
		Deployments: deployments,
		Tickets:     tickets,
		Audit:       audit,
		Generator:   collab.Generator,
		Publisher:   collab.Publisher,
		Briefs:      repos.Briefs(),
		Notifier:    collab.Notifier,
		Metrics:     collab.Metrics,
		Logger:      log,
		Clock:       clock,
		Timeout:     timeout,

		ExecutionLocker: collab.Locker,
	})

	return &Pipeline{
		Audit:       audit,
		Budget:      budget,
		Gate:        gate,
		Deployments: deployments,
		Tickets:     tickets,
		Coordinator: coordinator,
	}
}

// SeedDomains upserts every domain listed in the domains file
func SeedDomains(ctx context.Context, domains outbound.DomainRepository, specs []config.DomainSpec, now time.Time) error {
	for _, spec := range specs {
		if err := domains.Upsert(ctx, spec.Entity(now)); err != nil {
			return err
		}
	}
	return nil
}
