package entity

import (
	"time"

	apperr "github.com/brandpilot/brandpilot/domain/error"
)

// TicketStatus represents the lifecycle stage of a hallucination ticket
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "open"
	TicketStatusBriefGenerated  TicketStatus = "brief_generated"
	TicketStatusContentDeployed TicketStatus = "content_deployed"
	TicketStatusVerifiedClosed  TicketStatus = "verified_closed"
	TicketStatusSuppressed      TicketStatus = "suppressed"
)

// AlertSeverity is the severity at which opening a ticket raises an alert
const AlertSeverity = 8

var ticketRank = map[TicketStatus]int{
	TicketStatusOpen:            0,
	TicketStatusBriefGenerated:  1,
	TicketStatusContentDeployed: 2,
	TicketStatusVerifiedClosed:  3,
	TicketStatusSuppressed:      3,
}

// Valid reports whether s is a known status
func (s TicketStatus) Valid() bool {
	_, ok := ticketRank[s]
	return ok
}

// Terminal reports whether s ends the lifecycle
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusVerifiedClosed || s == TicketStatusSuppressed
}

// HallucinationTicket tracks a detected false claim until it is resolved
type HallucinationTicket struct {
	ID                     string       `json:"id"`
	DomainID               string       `json:"domain_id"`
	DetectedAt             time.Time    `json:"detected_at"`
	Source                 string       `json:"source"`
	TriggeringQuery        string       `json:"triggering_query"`
	FalseClaim             string       `json:"false_claim"`
	Severity               int          `json:"severity"`
	Status                 TicketStatus `json:"status"`
	AssignedBriefReference *string      `json:"assigned_brief_reference,omitempty"`
	ClosedAt               *time.Time   `json:"closed_at,omitempty"`
	ResolutionEvidence     *string      `json:"resolution_evidence,omitempty"`
}

// NewHallucinationTicket creates an open ticket. Severity is clamped to 1..10.
func NewHallucinationTicket(id, domainID, source, query, claim string, severity int, now time.Time) *HallucinationTicket {
	if severity < 1 {
		severity = 1
	}
	if severity > 10 {
		severity = 10
	}
	return &HallucinationTicket{
		ID:              id,
		DomainID:        domainID,
		DetectedAt:      now,
		Source:          source,
		TriggeringQuery: query,
		FalseClaim:      claim,
		Severity:        severity,
		Status:          TicketStatusOpen,
	}
}

// CanAdvance reports whether target is strictly forward of the current status
func (t *HallucinationTicket) CanAdvance(target TicketStatus) bool {
	if !target.Valid() || t.Status.Terminal() {
		return false
	}
	return ticketRank[target] > ticketRank[t.Status]
}

// Advance moves the ticket forward. Backward and same-rank moves are rejected.
// closed_at is set once, on entry into a terminal status.
func (t *HallucinationTicket) Advance(target TicketStatus, evidence string, now time.Time) error {
	if !t.CanAdvance(target) {
		return apperr.InvalidTransition(string(t.Status), string(target))
	}
	t.Status = target
	if evidence != "" {
		t.ResolutionEvidence = &evidence
	}
	if target.Terminal() && t.ClosedAt == nil {
		t.ClosedAt = &now
	}
	return nil
}

// AssignBrief links the brief generated for this ticket
func (t *HallucinationTicket) AssignBrief(briefID string) {
	t.AssignedBriefReference = &briefID
}

// TicketFilter represents filters for listing tickets
type TicketFilter struct {
	DomainID string
	Status   *TicketStatus
	Limit    int
}
