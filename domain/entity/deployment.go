package entity

import (
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	apperr "github.com/brandpilot/brandpilot/domain/error"
)

// RollbackWindow is how long a deployment stays reversible
const RollbackWindow = 30 * 24 * time.Hour

// RollbackStatus tracks whether a deployment can still be undone
type RollbackStatus string

const (
	RollbackAvailable RollbackStatus = "available"
	RollbackUsed      RollbackStatus = "used"
	RollbackExpired   RollbackStatus = "expired"
)

// Deployment is the before/after snapshot of one applied change
type Deployment struct {
	ID                string         `json:"id"`
	DomainID          string         `json:"domain_id"`
	ActionType        string         `json:"action_type"`
	Target            string         `json:"target"`
	StateBefore       string         `json:"state_before"`
	StateAfter        string         `json:"state_after"`
	Diff              string         `json:"diff"`
	ApprovalID        string         `json:"approval_id,omitempty"`
	DeployedAt        time.Time      `json:"deployed_at"`
	RollbackStatus    RollbackStatus `json:"rollback_status"`
	RollbackExpiresAt time.Time      `json:"rollback_expires_at"`
	ScoreDelta        *float64       `json:"score_delta,omitempty"`
}

// NewDeployment opens the rollback window at now
func NewDeployment(id, domainID, actionType, target, before, after, approvalID string, now time.Time) *Deployment {
	return &Deployment{
		ID:                id,
		DomainID:          domainID,
		ActionType:        actionType,
		Target:            target,
		StateBefore:       before,
		StateAfter:        after,
		Diff:              UnifiedDiff(target, before, after),
		ApprovalID:        approvalID,
		DeployedAt:        now,
		RollbackStatus:    RollbackAvailable,
		RollbackExpiresAt: now.Add(RollbackWindow),
	}
}

// WindowClosed reports whether now is past the rollback deadline
func (d *Deployment) WindowClosed(now time.Time) bool {
	return now.After(d.RollbackExpiresAt)
}

// ExpireIfDue moves an available deployment to expired once its window has
// closed. Returns true when the status changed.
func (d *Deployment) ExpireIfDue(now time.Time) bool {
	if d.RollbackStatus == RollbackAvailable && d.WindowClosed(now) {
		d.RollbackStatus = RollbackExpired
		return true
	}
	return false
}

// CheckRollback returns nil when a rollback is permitted at now
func (d *Deployment) CheckRollback(now time.Time) error {
	switch d.RollbackStatus {
	case RollbackUsed:
		return apperr.RollbackUsed(d.ID)
	case RollbackExpired:
		return apperr.RollbackExpired(d.ID, d.RollbackExpiresAt.Format(time.RFC3339))
	}
	if d.WindowClosed(now) {
		return apperr.RollbackExpired(d.ID, d.RollbackExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// MarkRolledBack consumes the rollback. It is one-way.
func (d *Deployment) MarkRolledBack(now time.Time) error {
	if err := d.CheckRollback(now); err != nil {
		return err
	}
	d.RollbackStatus = RollbackUsed
	return nil
}

// DeploymentFilter represents filters for listing deployments
type DeploymentFilter struct {
	DomainID       string
	ApprovalID     string
	RollbackStatus *RollbackStatus
	Limit          int
}

// UnifiedDiff renders a line diff of a content change
func UnifiedDiff(target, before, after string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(ensureTrailingNewline(before)),
		B:        difflib.SplitLines(ensureTrailingNewline(after)),
		FromFile: target + " (before)",
		ToFile:   target + " (after)",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

func ensureTrailingNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
