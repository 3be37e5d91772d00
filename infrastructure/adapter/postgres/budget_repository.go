package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
)

type BudgetLedgerRepository struct {
	db *sql.DB
}

func (r *BudgetLedgerRepository) Append(ctx context.Context, entry entity.BudgetLedgerEntry) error {
	query := `
        INSERT INTO budget_ledger (id, domain_id, provider, cost, description, incurred_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.DomainID,
		entry.Provider,
		entry.Cost,
		entry.Description,
		entry.IncurredAt,
	)
	return mapError("append budget entry", err)
}

func (r *BudgetLedgerRepository) SumSince(ctx context.Context, domainID string, since time.Time) (float64, error) {
	query := `
        SELECT COALESCE(SUM(cost), 0)
        FROM budget_ledger
        WHERE domain_id = $1 AND incurred_at >= $2
    `
	var total float64
	if err := r.db.QueryRowContext(ctx, query, domainID, since).Scan(&total); err != nil {
		return 0, mapError("sum budget ledger", err)
	}
	return total, nil
}

type DomainRepository struct {
	db *sql.DB
}

func (r *DomainRepository) FindByID(ctx context.Context, id string) (*entity.Domain, error) {
	query := `SELECT id, name, weekly_budget, created_at FROM domains WHERE id = $1`
	var d entity.Domain
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Name, &d.WeeklyBudget, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(apperr.ErrCodeDomainNotFound, "domain", id)
	}
	if err != nil {
		return nil, mapError("find domain", err)
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

// Upsert keeps the original created_at of an existing domain
func (r *DomainRepository) Upsert(ctx context.Context, domain *entity.Domain) error {
	query := `
        INSERT INTO domains (id, name, weekly_budget, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE
        SET name = EXCLUDED.name, weekly_budget = EXCLUDED.weekly_budget
    `
	_, err := r.db.ExecContext(ctx, query, domain.ID, domain.Name, domain.WeeklyBudget, domain.CreatedAt)
	return mapError("upsert domain", err)
}
