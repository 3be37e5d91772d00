package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
)

type TicketRepository struct {
	db *sql.DB
}

const ticketColumns = `id, domain_id, detected_at, source, triggering_query, false_claim, severity,
        status, assigned_brief_reference, closed_at, resolution_evidence`

func (r *TicketRepository) Create(ctx context.Context, t *entity.HallucinationTicket) error {
	query := `
        INSERT INTO hallucination_tickets (` + ticketColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `
	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.DomainID,
		t.DetectedAt,
		t.Source,
		t.TriggeringQuery,
		t.FalseClaim,
		t.Severity,
		string(t.Status),
		nullStringPtr(t.AssignedBriefReference),
		nullTime(t.ClosedAt),
		nullStringPtr(t.ResolutionEvidence),
	)
	return mapError("create ticket", err)
}

func (r *TicketRepository) FindByID(ctx context.Context, id string) (*entity.HallucinationTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM hallucination_tickets WHERE id = $1`
	t, err := scanTicket(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(apperr.ErrCodeTicketNotFound, "ticket", id)
	}
	if err != nil {
		return nil, mapError("find ticket", err)
	}
	return t, nil
}

func (r *TicketRepository) FindByBriefReference(ctx context.Context, briefID string) (*entity.HallucinationTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM hallucination_tickets WHERE assigned_brief_reference = $1 LIMIT 1`
	t, err := scanTicket(r.db.QueryRowContext(ctx, query, briefID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(apperr.ErrCodeTicketNotFound, "ticket for brief", briefID)
	}
	if err != nil {
		return nil, mapError("find ticket by brief", err)
	}
	return t, nil
}

// SaveTransition compares the stored status before writing. closed_at is
// only ever set from NULL.
func (r *TicketRepository) SaveTransition(ctx context.Context, t *entity.HallucinationTicket, expectedFrom entity.TicketStatus) error {
	query := `
        UPDATE hallucination_tickets
        SET status = $3, resolution_evidence = $4, closed_at = COALESCE(closed_at, $5)
        WHERE id = $1 AND status = $2
    `
	result, err := r.db.ExecContext(ctx, query,
		t.ID,
		string(expectedFrom),
		string(t.Status),
		nullStringPtr(t.ResolutionEvidence),
		nullTime(t.ClosedAt),
	)
	if err != nil {
		return mapError("save ticket transition", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError("save ticket transition", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	stored, err := r.FindByID(ctx, t.ID)
	if err != nil {
		return err
	}
	return apperr.InvalidTransition(string(stored.Status), string(t.Status))
}

func (r *TicketRepository) AssignBrief(ctx context.Context, ticketID, briefID string) error {
	query := `UPDATE hallucination_tickets SET assigned_brief_reference = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, ticketID, briefID)
	if err != nil {
		return mapError("assign brief", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError("assign brief", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFound(apperr.ErrCodeTicketNotFound, "ticket", ticketID)
	}
	return nil
}

func (r *TicketRepository) List(ctx context.Context, filter entity.TicketFilter) ([]*entity.HallucinationTicket, error) {
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

	query := `SELECT ` + ticketColumns + ` FROM hallucination_tickets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY severity DESC, detected_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list tickets", err)
	}
	defer rows.Close()

	tickets := []*entity.HallucinationTicket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, mapError("scan ticket", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list tickets", err)
	}
	return tickets, nil
}

func scanTicket(row rowScanner) (*entity.HallucinationTicket, error) {
	var t entity.HallucinationTicket
	var briefRef, evidence sql.NullString
	var closedAt sql.NullTime
	err := row.Scan(
		&t.ID,
		&t.DomainID,
		&t.DetectedAt,
		&t.Source,
		&t.TriggeringQuery,
		&t.FalseClaim,
		&t.Severity,
		&t.Status,
		&briefRef,
		&closedAt,
		&evidence,
	)
	if err != nil {
		return nil, err
	}
	t.DetectedAt = t.DetectedAt.UTC()
	t.AssignedBriefReference = stringPtr(briefRef)
	t.ClosedAt = timePtr(closedAt)
	t.ResolutionEvidence = stringPtr(evidence)
	return &t, nil
}
