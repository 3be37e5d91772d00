package entity

import (
	"strings"
	"time"

	apperr "github.com/brandpilot/brandpilot/domain/error"
)

// ApprovalStatus represents the status of an approval
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusDeclined ApprovalStatus = "declined"
)

// ApprovalType represents what kind of proposal is waiting for a decision
type ApprovalType string

const (
	ApprovalTypeKeyword ApprovalType = "keyword"
	ApprovalTypeBrief   ApprovalType = "brief"
)

// ItemKind selects the downstream applier for an approved item
type ItemKind string

const (
	ItemKindKeyword ItemKind = "keyword"
	ItemKindBrief   ItemKind = "brief"
)

// Publishes reports whether approving this kind ends in a deployment
func (k ItemKind) Publishes() bool {
	return k == ItemKindBrief
}

// RiskLevel is the risk tier of a proposed action
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Decision is the outcome requested by a decide call
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDecline Decision = "decline"
)

var priorityRisk = map[string]RiskLevel{
	"critical": RiskCritical,
	"high":     RiskHigh,
	"medium":   RiskMedium,
	"low":      RiskLow,
}

// MapPriorityToRisk maps a declared priority to a risk tier. Unrecognized
// priorities are medium.
func MapPriorityToRisk(priority string) RiskLevel {
	if risk, ok := priorityRisk[strings.ToLower(strings.TrimSpace(priority))]; ok {
		return risk
	}
	return RiskMedium
}

// Approval is a pending decision on a proposed item
type Approval struct {
	ID              string         `json:"id"`
	DomainID        string         `json:"domain_id"`
	ApprovalType    ApprovalType   `json:"approval_type"`
	ItemReference   string         `json:"item_reference"`
	ItemKind        ItemKind       `json:"item_kind"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	ImpactStatement string         `json:"impact_statement"`
	Status          ApprovalStatus `json:"status"`
	DecidedBy       *string        `json:"decided_by,omitempty"`
	DecidedAt       *time.Time     `json:"decided_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// NewApproval creates a pending approval
func NewApproval(id, domainID string, approvalType ApprovalType, itemReference string, itemKind ItemKind,
	risk RiskLevel, title, description, impact string, now time.Time) *Approval {
	return &Approval{
		ID:              id,
		DomainID:        domainID,
		ApprovalType:    approvalType,
		ItemReference:   itemReference,
		ItemKind:        itemKind,
		RiskLevel:       risk,
		Title:           title,
		Description:     description,
		ImpactStatement: impact,
		Status:          ApprovalStatusPending,
		CreatedAt:       now,
	}
}

// IsDecided reports whether the approval reached a terminal decision
func (a *Approval) IsDecided() bool {
	return a.Status != ApprovalStatusPending
}

// Decide records the terminal decision. A decided approval is never re-decided.
func (a *Approval) Decide(decision Decision, decidedBy string, now time.Time) error {
	if a.IsDecided() {
		return apperr.ApprovalNotPending(a.ID, string(a.Status))
	}
	switch decision {
	case DecisionApprove:
		a.Status = ApprovalStatusApproved
	case DecisionDecline:
		a.Status = ApprovalStatusDeclined
	default:
		return apperr.InvalidRequest("unknown decision: " + string(decision))
	}
	a.DecidedBy = &decidedBy
	a.DecidedAt = &now
	return nil
}

// ApprovalFilter represents filters for listing approvals
type ApprovalFilter struct {
	DomainID     string
	Status       *ApprovalStatus
	ApprovalType *ApprovalType
	Limit        int
}
