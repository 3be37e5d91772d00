package postgres

import (
	"context"
	"database/sql"

	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
)

// AuditRepository only inserts and reads. Updates and deletes are refused by
// the audit_entries_guard trigger as well.
type AuditRepository struct {
	db *sql.DB
}

const auditColumns = `entry_id, domain_id, timestamp, action_type, action_detail, initiated_by,
        approval_gate, approved_by, approved_at, outcome, snapshot_reference, notes`

func (r *AuditRepository) Append(ctx context.Context, entry entity.AuditEntry) error {
	detail, err := entity.EncodeActionDetail(entry.ActionDetail)
	if err != nil {
		return apperr.InvalidRequest(err.Error())
	}

	query := `
        INSERT INTO audit_entries (` + auditColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	_, err = r.db.ExecContext(ctx, query,
		entry.EntryID,
		entry.DomainID,
		entry.Timestamp,
		string(entry.ActionType),
		string(detail),
		string(entry.InitiatedBy),
		nullString(entry.ApprovalGate),
		nullString(entry.ApprovedBy),
		nullTime(entry.ApprovedAt),
		string(entry.Outcome),
		nullString(entry.SnapshotReference),
		nullString(entry.Notes),
	)
	if isUniqueViolation(err) {
		return apperr.ErrAuditImmutable
	}
	return mapError("append audit entry", err)
}

func (r *AuditRepository) FindByID(ctx context.Context, entryID string) (entity.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_entries WHERE entry_id = $1`
	entry, err := scanAuditEntry(r.db.QueryRowContext(ctx, query, entryID))
	if err == sql.ErrNoRows {
		return entity.AuditEntry{}, apperr.NotFound(apperr.ErrCodeAuditNotFound, "audit entry", entryID)
	}
	if err != nil {
		return entity.AuditEntry{}, mapError("find audit entry", err)
	}
	return entry, nil
}

func (r *AuditRepository) ListByDomain(ctx context.Context, domainID string, limit int) ([]entity.AuditEntry, error) {
	query := `
        SELECT ` + auditColumns + `
        FROM audit_entries
        WHERE domain_id = $1
        ORDER BY timestamp DESC, seq DESC
    `
	args := []interface{}{domainID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list audit entries", err)
	}
	defer rows.Close()

	entries := []entity.AuditEntry{}
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, mapError("scan audit entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list audit entries", err)
	}
	return entries, nil
}

func scanAuditEntry(row rowScanner) (entity.AuditEntry, error) {
	var e entity.AuditEntry
	var detail []byte
	var approvalGate, approvedBy, snapshot, notes sql.NullString
	var approvedAt sql.NullTime
	err := row.Scan(
		&e.EntryID,
		&e.DomainID,
		&e.Timestamp,
		&e.ActionType,
		&detail,
		&e.InitiatedBy,
		&approvalGate,
		&approvedBy,
		&approvedAt,
		&e.Outcome,
		&snapshot,
		&notes,
	)
	if err != nil {
		return entity.AuditEntry{}, err
	}
	e.ActionDetail, err = entity.DecodeActionDetail(detail)
	if err != nil {
		return entity.AuditEntry{}, err
	}
	e.Timestamp = e.Timestamp.UTC()
	e.ApprovalGate = approvalGate.String
	e.ApprovedBy = approvedBy.String
	e.ApprovedAt = timePtr(approvedAt)
	e.SnapshotReference = snapshot.String
	e.Notes = notes.String
	return e, nil
}
