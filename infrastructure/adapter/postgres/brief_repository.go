package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
)

type BriefRepository struct {
	db *sql.DB
}

func (r *BriefRepository) Create(ctx context.Context, b *entity.Brief) error {
	query := `
        INSERT INTO briefs (id, domain_id, ticket_id, title, priority, target, content, engine, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.DomainID,
		nullString(b.TicketID),
		b.Title,
		b.Priority,
		b.Target,
		b.Content,
		b.Engine,
		b.CreatedAt,
	)
	return mapError("create brief", err)
}

func (r *BriefRepository) FindByID(ctx context.Context, id string) (*entity.Brief, error) {
	query := `
        SELECT id, domain_id, ticket_id, title, priority, target, content, engine, created_at
        FROM briefs
        WHERE id = $1
    `
	var b entity.Brief
	var ticketID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID,
		&b.DomainID,
		&ticketID,
		&b.Title,
		&b.Priority,
		&b.Target,
		&b.Content,
		&b.Engine,
		&b.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(apperr.ErrCodeBriefNotFound, "brief", id)
	}
	if err != nil {
		return nil, mapError("find brief", err)
	}
	b.TicketID = ticketID.String
	b.CreatedAt = b.CreatedAt.UTC()
	return &b, nil
}

// KeywordRepository backs the keyword applier
type KeywordRepository struct {
	db *sql.DB
}

// Track inserts a pending keyword for domainID
func (r *KeywordRepository) Track(ctx context.Context, id, domainID, query string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO keywords (id, domain_id, query) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		id, domainID, query)
	return mapError("track keyword", err)
}

func (r *KeywordRepository) MarkApproved(ctx context.Context, keywordID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE keywords SET status = 'approved', approved_at = COALESCE(approved_at, $2) WHERE id = $1`,
		keywordID, time.Now().UTC())
	if err != nil {
		return mapError("approve keyword", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError("approve keyword", err)
	}
	if rowsAffected == 0 {
		return apperr.InvalidRequest("unknown keyword: " + keywordID)
	}
	return nil
}
