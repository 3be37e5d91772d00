package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates every table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS domains (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    weekly_budget NUMERIC(12,4) NOT NULL DEFAULT 0 CHECK (weekly_budget >= 0),
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS approvals (
    id               TEXT PRIMARY KEY,
    domain_id        TEXT NOT NULL REFERENCES domains(id),
    approval_type    TEXT NOT NULL,
    item_reference   TEXT NOT NULL,
    item_kind        TEXT NOT NULL,
    risk_level       TEXT NOT NULL CHECK (risk_level IN ('low','medium','high','critical')),
    title            TEXT NOT NULL DEFAULT '',
    description      TEXT NOT NULL DEFAULT '',
    impact_statement TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL CHECK (status IN ('pending','approved','declined')),
    decided_by       TEXT,
    decided_at       TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL,
    CHECK ((status = 'pending') = (decided_at IS NULL))
);
CREATE INDEX IF NOT EXISTS idx_approvals_domain_status ON approvals (domain_id, status, created_at DESC);

CREATE TABLE IF NOT EXISTS audit_entries (
    seq                BIGSERIAL UNIQUE,
    entry_id           TEXT PRIMARY KEY,
    domain_id          TEXT NOT NULL,
    timestamp          TIMESTAMPTZ NOT NULL,
    action_type        TEXT NOT NULL,
    action_detail      JSONB NOT NULL,
    initiated_by       TEXT NOT NULL,
    approval_gate      TEXT,
    approved_by        TEXT,
    approved_at        TIMESTAMPTZ,
    outcome            TEXT NOT NULL CHECK (outcome IN ('pending','success','failed','rolled_back')),
    snapshot_reference TEXT,
    notes              TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_domain_time ON audit_entries (domain_id, timestamp DESC, seq DESC);

CREATE OR REPLACE FUNCTION audit_entries_guard() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION 'audit_entries is append-only' USING ERRCODE = 'BP001';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS audit_entries_no_update ON audit_entries;
CREATE TRIGGER audit_entries_no_update BEFORE UPDATE OR DELETE ON audit_entries
    FOR EACH ROW EXECUTE FUNCTION audit_entries_guard();
DROP TRIGGER IF EXISTS audit_entries_no_truncate ON audit_entries;
CREATE TRIGGER audit_entries_no_truncate BEFORE TRUNCATE ON audit_entries
    FOR EACH STATEMENT EXECUTE FUNCTION audit_entries_guard();

CREATE TABLE IF NOT EXISTS budget_ledger (
    id          TEXT PRIMARY KEY,
    domain_id   TEXT NOT NULL REFERENCES domains(id),
    provider    TEXT NOT NULL,
    cost        NUMERIC(12,4) NOT NULL CHECK (cost >= 0),
    description TEXT NOT NULL DEFAULT '',
    incurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_budget_domain_time ON budget_ledger (domain_id, incurred_at);

CREATE TABLE IF NOT EXISTS deployments (
    id                  TEXT PRIMARY KEY,
    domain_id           TEXT NOT NULL REFERENCES domains(id),
    action_type         TEXT NOT NULL,
    target              TEXT NOT NULL,
    state_before        TEXT NOT NULL,
    state_after         TEXT NOT NULL,
    diff                TEXT NOT NULL DEFAULT '',
    approval_id         TEXT,
    deployed_at         TIMESTAMPTZ NOT NULL,
    rollback_status     TEXT NOT NULL CHECK (rollback_status IN ('available','used','expired')),
    rollback_expires_at TIMESTAMPTZ NOT NULL,
    score_delta         DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_deployments_rollback ON deployments (rollback_status, rollback_expires_at);
CREATE INDEX IF NOT EXISTS idx_deployments_approval ON deployments (approval_id);

CREATE TABLE IF NOT EXISTS briefs (
    id         TEXT PRIMARY KEY,
    domain_id  TEXT NOT NULL REFERENCES domains(id),
    ticket_id  TEXT,
    title      TEXT NOT NULL,
    priority   TEXT NOT NULL DEFAULT '',
    target     TEXT NOT NULL DEFAULT '',
    content    TEXT NOT NULL,
    engine     TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS hallucination_tickets (
    id                       TEXT PRIMARY KEY,
    domain_id                TEXT NOT NULL REFERENCES domains(id),
    detected_at              TIMESTAMPTZ NOT NULL,
    source                   TEXT NOT NULL DEFAULT '',
    triggering_query         TEXT NOT NULL DEFAULT '',
    false_claim              TEXT NOT NULL DEFAULT '',
    severity                 INTEGER NOT NULL CHECK (severity BETWEEN 1 AND 10),
    status                   TEXT NOT NULL CHECK (status IN ('open','brief_generated','content_deployed','verified_closed','suppressed')),
    assigned_brief_reference TEXT,
    closed_at                TIMESTAMPTZ,
    resolution_evidence      TEXT
);
CREATE INDEX IF NOT EXISTS idx_tickets_domain_severity ON hallucination_tickets (domain_id, severity DESC, detected_at DESC);
CREATE INDEX IF NOT EXISTS idx_tickets_brief ON hallucination_tickets (assigned_brief_reference);

CREATE TABLE IF NOT EXISTS keywords (
    id          TEXT PRIMARY KEY,
    domain_id   TEXT NOT NULL REFERENCES domains(id),
    query       TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved')),
    approved_at TIMESTAMPTZ
);
`

// Migrate applies Schema
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// DropSchema removes every table and the audit guard. DROP TABLE is not
// blocked by the guard triggers.
const DropSchema = `
DROP TABLE IF EXISTS keywords;
DROP TABLE IF EXISTS hallucination_tickets;
DROP TABLE IF EXISTS briefs;
DROP TABLE IF EXISTS deployments;
DROP TABLE IF EXISTS budget_ledger;
DROP TABLE IF EXISTS audit_entries;
DROP FUNCTION IF EXISTS audit_entries_guard();
DROP TABLE IF EXISTS approvals;
DROP TABLE IF EXISTS domains;
`

// Drop applies DropSchema
func Drop(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, DropSchema); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return nil
}
