package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	apperr "github.com/brandpilot/brandpilot/domain/error"
)

// SQLSTATE raised by the audit_entries guard trigger
const auditImmutableCode = "BP001"

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// Store exposes every repository over one connection pool
type Store struct {
	db *sql.DB
}

// Open connects and pings with a bounded timeout
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Approvals() outbound.ApprovalRepository        { return &ApprovalRepository{db: s.db} }
func (s *Store) Audit() outbound.AuditRepository               { return &AuditRepository{db: s.db} }
func (s *Store) BudgetLedger() outbound.BudgetLedgerRepository { return &BudgetLedgerRepository{db: s.db} }
func (s *Store) Domains() outbound.DomainRepository            { return &DomainRepository{db: s.db} }
func (s *Store) Deployments() outbound.DeploymentRepository    { return &DeploymentRepository{db: s.db} }
func (s *Store) Tickets() outbound.TicketRepository            { return &TicketRepository{db: s.db} }
func (s *Store) Briefs() outbound.BriefRepository              { return &BriefRepository{db: s.db} }
func (s *Store) Keywords() outbound.KeywordRepository          { return &KeywordRepository{db: s.db} }

// mapError classifies a driver error. Constraint violations become
// validation errors, the audit guard becomes ErrAuditImmutable and anything
// else is a persistence failure.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case auditImmutableCode:
			return apperr.NewAppError(apperr.ErrCodeAuditImmutable, apperr.KindInvalidState,
				"Audit entries cannot be modified", op, err)
		case pqUniqueViolation:
			return apperr.NewAppError(apperr.ErrCodeInvalidRequest, apperr.KindValidation,
				"Duplicate record", fmt.Sprintf("%s: %s", op, pqErr.Constraint), err)
		case pqForeignKeyViolation, pqCheckViolation:
			return apperr.NewAppError(apperr.ErrCodeInvalidRequest, apperr.KindValidation,
				"Constraint violated", fmt.Sprintf("%s: %s", op, pqErr.Constraint), err)
		}
	}
	return apperr.Persistence(op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time.UTC()
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
