package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
)

type DeploymentRepository struct {
	db *sql.DB
}

const deploymentColumns = `id, domain_id, action_type, target, state_before, state_after, diff,
        approval_id, deployed_at, rollback_status, rollback_expires_at, score_delta`

func (r *DeploymentRepository) Create(ctx context.Context, d *entity.Deployment) error {
	query := `
        INSERT INTO deployments (` + deploymentColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	var scoreDelta sql.NullFloat64
	if d.ScoreDelta != nil {
		scoreDelta = sql.NullFloat64{Float64: *d.ScoreDelta, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.DomainID,
		d.ActionType,
		d.Target,
		d.StateBefore,
		d.StateAfter,
		d.Diff,
		nullString(d.ApprovalID),
		d.DeployedAt,
		string(d.RollbackStatus),
		d.RollbackExpiresAt,
		scoreDelta,
	)
	return mapError("create deployment", err)
}

func (r *DeploymentRepository) FindByID(ctx context.Context, id string) (*entity.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = $1`
	d, err := scanDeployment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(apperr.ErrCodeDeploymentNotFound, "deployment", id)
	}
	if err != nil {
		return nil, mapError("find deployment", err)
	}
	return d, nil
}

func (r *DeploymentRepository) List(ctx context.Context, filter entity.DeploymentFilter) ([]*entity.Deployment, error) {
	var where []string
	var args []interface{}
	if filter.DomainID != "" {
		args = append(args, filter.DomainID)
		where = append(where, fmt.Sprintf("domain_id = $%d", len(args)))
	}
	if filter.ApprovalID != "" {
		args = append(args, filter.ApprovalID)
		where = append(where, fmt.Sprintf("approval_id = $%d", len(args)))
	}
	if filter.RollbackStatus != nil {
		args = append(args, string(*filter.RollbackStatus))
		where = append(where, fmt.Sprintf("rollback_status = $%d", len(args)))
	}

	query := `SELECT ` + deploymentColumns + ` FROM deployments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY deployed_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list deployments", err)
	}
	defer rows.Close()

	deployments := []*entity.Deployment{}
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, mapError("scan deployment", err)
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list deployments", err)
	}
	return deployments, nil
}

func (r *DeploymentRepository) TransitionRollbackStatus(ctx context.Context, id string, from, to entity.RollbackStatus) (bool, error) {
	query := `UPDATE deployments SET rollback_status = $3 WHERE id = $1 AND rollback_status = $2`
	result, err := r.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return false, mapError("transition rollback status", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, mapError("transition rollback status", err)
	}
	if rowsAffected == 1 {
		return true, nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *DeploymentRepository) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	query := `
        UPDATE deployments
        SET rollback_status = 'expired'
        WHERE rollback_status = 'available' AND rollback_expires_at < $1
    `
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, mapError("expire deployments", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, mapError("expire deployments", err)
	}
	return int(rowsAffected), nil
}

func (r *DeploymentRepository) UpdateScoreDelta(ctx context.Context, id string, delta float64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE deployments SET score_delta = $2 WHERE id = $1`, id, delta)
	if err != nil {
		return mapError("update score delta", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError("update score delta", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFound(apperr.ErrCodeDeploymentNotFound, "deployment", id)
	}
	return nil
}

func scanDeployment(row rowScanner) (*entity.Deployment, error) {
	var d entity.Deployment
	var approvalID sql.NullString
	var scoreDelta sql.NullFloat64
	err := row.Scan(
		&d.ID,
		&d.DomainID,
		&d.ActionType,
		&d.Target,
		&d.StateBefore,
		&d.StateAfter,
		&d.Diff,
		&approvalID,
		&d.DeployedAt,
		&d.RollbackStatus,
		&d.RollbackExpiresAt,
		&scoreDelta,
	)
	if err != nil {
		return nil, err
	}
	d.ApprovalID = approvalID.String
	d.DeployedAt = d.DeployedAt.UTC()
	d.RollbackExpiresAt = d.RollbackExpiresAt.UTC()
	if scoreDelta.Valid {
		v := scoreDelta.Float64
		d.ScoreDelta = &v
	}
	return &d, nil
}
