package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

// BudgetGovernorUseCase derives rolling weekly spend from the ledger on every
// call. Nothing is cached.
//
// Without a SpendLocker the check and the following cost-incurring call are
// not atomic, so concurrent callers may overshoot the cap once. EnableHardCap
// serializes check and track per domain.
type BudgetGovernorUseCase struct {
	domains  outbound.DomainRepository
	ledger   outbound.BudgetLedgerRepository
	notifier outbound.Notifier
	metrics  outbound.PipelineMetrics
	locker   outbound.SpendLocker
	logger   logger.Logger
	now      Clock
}

func NewBudgetGovernorUseCase(
	domains outbound.DomainRepository,
	ledger outbound.BudgetLedgerRepository,
	notifier outbound.Notifier,
	metrics outbound.PipelineMetrics,
	log logger.Logger,
	clock Clock,
) *BudgetGovernorUseCase {
	if metrics == nil {
		metrics = outbound.NoopMetrics{}
	}
	return &BudgetGovernorUseCase{
		domains:  domains,
		ledger:   ledger,
		notifier: notifier,
		metrics:  metrics,
		logger:   log.WithFields(map[string]interface{}{"component": "budget_governor"}),
		now:      orSystemClock(clock),
	}
}

// EnableHardCap makes WithSpendLock hold locker around the wrapped call
func (uc *BudgetGovernorUseCase) EnableHardCap(locker outbound.SpendLocker) {
	uc.locker = locker
}

func (uc *BudgetGovernorUseCase) WeeklySpend(ctx context.Context, domainID string) (float64, error) {
	spend, err := uc.ledger.SumSince(ctx, domainID, entity.WindowStart(uc.now()))
	if err != nil {
		return 0, storeErr("budget weekly spend", err)
	}
	return spend, nil
}

func (uc *BudgetGovernorUseCase) Check(ctx context.Context, domainID string) (*entity.BudgetCheck, error) {
	if domainID == "" {
		return nil, apperr.MissingField("domain_id")
	}
	domain, err := uc.domains.FindByID(ctx, domainID)
	if err != nil {
		return nil, storeErr("budget load domain", err)
	}
	spend, err := uc.WeeklySpend(ctx, domainID)
	if err != nil {
		return nil, err
	}

	check := entity.EvaluateBudget(domainID, spend, domain.WeeklyBudget)
	uc.metrics.SetBudgetUsage(domainID, check.UsageRatio)
	return &check, nil
}

// TrackCost appends one ledger entry and alerts when the append moves the
// domain into exceeded.
func (uc *BudgetGovernorUseCase) TrackCost(ctx context.Context, domainID, provider string, amount float64, description string) error {
	if provider == "" {
		return apperr.MissingField("provider")
	}
	if amount < 0 {
		return apperr.InvalidRequest(fmt.Sprintf("negative cost: %.4f", amount))
	}

	before, err := uc.Check(ctx, domainID)
	if err != nil {
		return err
	}

	entry := entity.BudgetLedgerEntry{
		ID:          uuid.NewString(),
		DomainID:    domainID,
		Provider:    provider,
		Cost:        amount,
		Description: description,
		IncurredAt:  uc.now(),
	}
	if err := uc.ledger.Append(ctx, entry); err != nil {
		uc.logger.Error(ctx, "Failed to record cost", err, map[string]interface{}{
			"domain_id": domainID,
			"provider":  provider,
			"cost":      amount,
		})
		return storeErr("budget track cost", err)
	}

	after, err := uc.Check(ctx, domainID)
	if err != nil {
		return err
	}

	uc.logger.Info(ctx, "Cost tracked", map[string]interface{}{
		"domain_id":   domainID,
		"provider":    provider,
		"cost":        amount,
		"usage_ratio": after.UsageRatio,
		"status":      after.Status,
	})

	if before.Status != entity.BudgetStatusExceeded && after.Status == entity.BudgetStatusExceeded {
		logger.LogPolicyEvent(ctx, uc.logger, "budget_exceeded", "HIGH", map[string]interface{}{
			"domain_id":    domainID,
			"weekly_spend": after.WeeklySpend,
		})
		message := fmt.Sprintf("Spend $%.2f of $%.2f weekly budget; cost-incurring actions are paused",
			after.WeeklySpend, after.WeeklyBudget)
		sendAlert(ctx, uc.notifier, uc.logger, outbound.Alert{
			Type:      outbound.AlertBudgetExceeded,
			DomainID:  domainID,
			Subject:   "Weekly budget exceeded",
			Message:   message,
			Data:      map[string]interface{}{"usage_ratio": after.UsageRatio},
			CreatedAt: uc.now(),
		})
	}
	return nil
}

func (uc *BudgetGovernorUseCase) CanProceed(ctx context.Context, domainID string) (bool, string, error) {
	check, err := uc.Check(ctx, domainID)
	if err != nil {
		return false, "", err
	}
	ok, reason := check.CanProceed()
	if !ok {
		logger.LogPolicyEvent(ctx, uc.logger, "budget_blocked", "MEDIUM", map[string]interface{}{
			"domain_id":   domainID,
			"usage_ratio": check.UsageRatio,
		})
	}
	return ok, reason, nil
}

func (uc *BudgetGovernorUseCase) WithSpendLock(ctx context.Context, domainID string, fn func(ctx context.Context) error) error {
	if uc.locker == nil {
		return fn(ctx)
	}

	start := time.Now()
	unlock, err := uc.locker.Lock(ctx, domainID)
	if err != nil {
		return apperr.CollaboratorUnavailable("spend-lock", err)
	}
	defer unlock()
	logger.LogPerformance(ctx, uc.logger, "spend_lock_acquire", time.Since(start), map[string]interface{}{
		"domain_id": domainID,
	})

	return fn(ctx)
}
