package entity

import (
	"fmt"
	"math"
	"time"
)

const (
	BudgetWarningThreshold = 0.80
	BudgetHardThreshold    = 1.00
	BudgetWindow           = 7 * 24 * time.Hour

	// CostScale matches the ledger's NUMERIC(12,4) cost column
	CostScale = 10000
)

// CostUnits converts an amount to whole ten-thousandths. Spend is summed and
// compared in units so fractional charges reach the thresholds exactly.
func CostUnits(amount float64) int64 {
	return int64(math.Round(amount * CostScale))
}

func FromCostUnits(units int64) float64 {
	return float64(units) / CostScale
}

// BudgetStatus is the state of a domain's rolling weekly spend
type BudgetStatus string

const (
	BudgetStatusOK       BudgetStatus = "ok"
	BudgetStatusWarning  BudgetStatus = "warning"
	BudgetStatusExceeded BudgetStatus = "exceeded"
)

// Domain is a managed account with a weekly spend cap
type Domain struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	WeeklyBudget float64   `json:"weekly_budget" yaml:"weekly_budget"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
}

// BudgetLedgerEntry records one cost-incurring call. Append-only.
type BudgetLedgerEntry struct {
	ID          string    `json:"id"`
	DomainID    string    `json:"domain_id"`
	Provider    string    `json:"provider"`
	Cost        float64   `json:"cost"`
	Description string    `json:"description"`
	IncurredAt  time.Time `json:"incurred_at"`
}

// BudgetCheck is the result of evaluating spend against the weekly budget
type BudgetCheck struct {
	DomainID     string       `json:"domain_id"`
	Status       BudgetStatus `json:"status"`
	WeeklySpend  float64      `json:"weekly_spend"`
	WeeklyBudget float64      `json:"weekly_budget"`
	UsageRatio   float64      `json:"usage_ratio"`
	Remaining    float64      `json:"remaining"`
	Warnings     []string     `json:"warnings"`
}

// WindowStart returns the inclusive lower bound of the rolling spend window
func WindowStart(now time.Time) time.Time {
	return now.Add(-BudgetWindow)
}

// SumWindow sums costs incurred at or after now-7d
func SumWindow(entries []BudgetLedgerEntry, now time.Time) float64 {
	start := WindowStart(now)
	var units int64
	for _, e := range entries {
		if !e.IncurredAt.Before(start) {
			units += CostUnits(e.Cost)
		}
	}
	return FromCostUnits(units)
}

// EvaluateBudget classifies spend against budget in whole cost units. A
// budget below one unit permits no spend.
func EvaluateBudget(domainID string, spend, budget float64) BudgetCheck {
	spendUnits := CostUnits(spend)
	budgetUnits := CostUnits(budget)
	spend = FromCostUnits(spendUnits)
	check := BudgetCheck{
		DomainID:     domainID,
		WeeklySpend:  spend,
		WeeklyBudget: budget,
		Warnings:     []string{},
	}

	if budgetUnits <= 0 {
		check.Status = BudgetStatusExceeded
		check.UsageRatio = 1
		check.Warnings = append(check.Warnings, "no weekly budget configured")
		return check
	}

	check.UsageRatio = float64(spendUnits) / float64(budgetUnits)
	if spendUnits < budgetUnits {
		check.Remaining = FromCostUnits(budgetUnits - spendUnits)
	}

	switch {
	case reaches(spendUnits, budgetUnits, BudgetHardThreshold):
		check.Status = BudgetStatusExceeded
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("weekly budget exceeded: $%.2f of $%.2f", spend, budget))
	case reaches(spendUnits, budgetUnits, BudgetWarningThreshold):
		check.Status = BudgetStatusWarning
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("weekly spend at %.0f%% of budget", check.UsageRatio*100),
			fmt.Sprintf("$%.2f remaining this week", check.Remaining))
	default:
		check.Status = BudgetStatusOK
	}
	return check
}

// reaches reports spend/budget >= threshold without dividing
func reaches(spendUnits, budgetUnits int64, threshold float64) bool {
	return spendUnits*CostScale >= budgetUnits*CostUnits(threshold)
}

// CanProceed turns a check into the gate answer. Only exceeded blocks.
func (c BudgetCheck) CanProceed() (bool, string) {
	switch c.Status {
	case BudgetStatusExceeded:
		return false, fmt.Sprintf("budget exceeded (%.0f%% of weekly limit used), cannot proceed", c.UsageRatio*100)
	case BudgetStatusWarning:
		return true, fmt.Sprintf("budget at %.0f%% of weekly limit, proceed with caution", c.UsageRatio*100)
	default:
		return true, "within budget"
	}
}
