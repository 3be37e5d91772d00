package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
)

type ApprovalRepository struct {
	db *sql.DB
}

const approvalColumns = `id, domain_id, approval_type, item_reference, item_kind, risk_level, title,
        description, impact_statement, status, decided_by, decided_at, created_at`

func (r *ApprovalRepository) Create(ctx context.Context, approval *entity.Approval) error {
	query := `
        INSERT INTO approvals (` + approvalColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `
	_, err := r.db.ExecContext(ctx, query,
		approval.ID,
		approval.DomainID,
		string(approval.ApprovalType),
		approval.ItemReference,
		string(approval.ItemKind),
		string(approval.RiskLevel),
		approval.Title,
		approval.Description,
		approval.ImpactStatement,
		string(approval.Status),
		nullStringPtr(approval.DecidedBy),
		nullTime(approval.DecidedAt),
		approval.CreatedAt,
	)
	return mapError("create approval", err)
}

func (r *ApprovalRepository) FindByID(ctx context.Context, id string) (*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = $1`
	approval, err := scanApproval(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(apperr.ErrCodeApprovalNotFound, "approval", id)
	}
	if err != nil {
		return nil, mapError("find approval", err)
	}
	return approval, nil
}

// SaveDecision updates only a pending row; a miss is resolved to not-found or
// not-pending with a follow-up read.
func (r *ApprovalRepository) SaveDecision(ctx context.Context, approval *entity.Approval) error {
	query := `
        UPDATE approvals
        SET status = $2, decided_by = $3, decided_at = $4
        WHERE id = $1 AND status = 'pending'
    `
	result, err := r.db.ExecContext(ctx, query,
		approval.ID,
		string(approval.Status),
		nullStringPtr(approval.DecidedBy),
		nullTime(approval.DecidedAt),
	)
	if err != nil {
		return mapError("save decision", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError("save decision", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	stored, err := r.FindByID(ctx, approval.ID)
	if err != nil {
		return err
	}
	return apperr.ApprovalNotPending(approval.ID, string(stored.Status))
}

func (r *ApprovalRepository) List(ctx context.Context, filter entity.ApprovalFilter) ([]*entity.Approval, error) {
	var where []string
	var args []interface{}
	if filter.DomainID != "" {
		args = append(args, filter.DomainID)
		where = append(where, fmt.Sprintf("domain_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ApprovalType != nil {
		args = append(args, string(*filter.ApprovalType))
		where = append(where, fmt.Sprintf("approval_type = $%d", len(args)))
	}

	query := `SELECT ` + approvalColumns + ` FROM approvals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list approvals", err)
	}
	defer rows.Close()

	approvals := []*entity.Approval{}
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, mapError("scan approval", err)
		}
		approvals = append(approvals, approval)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list approvals", err)
	}
	return approvals, nil
}

func scanApproval(row rowScanner) (*entity.Approval, error) {
	var a entity.Approval
	var decidedBy sql.NullString
	var decidedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.DomainID,
		&a.ApprovalType,
		&a.ItemReference,
		&a.ItemKind,
		&a.RiskLevel,
		&a.Title,
		&a.Description,
		&a.ImpactStatement,
		&a.Status,
		&decidedBy,
		&decidedAt,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.DecidedBy = stringPtr(decidedBy)
	a.DecidedAt = timePtr(decidedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
