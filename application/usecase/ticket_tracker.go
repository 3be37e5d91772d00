package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

// TicketTrackerUseCase moves hallucination tickets forward through their
// lifecycle and audits each step.
type TicketTrackerUseCase struct {
	repo     outbound.TicketRepository
	audit    inbound.AuditLedger
	notifier outbound.Notifier
	logger   logger.Logger
	now      Clock
}

func NewTicketTrackerUseCase(
	repo outbound.TicketRepository,
	audit inbound.AuditLedger,
	notifier outbound.Notifier,
	log logger.Logger,
	clock Clock,
) *TicketTrackerUseCase {
	return &TicketTrackerUseCase{
		repo:     repo,
		audit:    audit,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "ticket_tracker"}),
		now:      orSystemClock(clock),
	}
}

func (uc *TicketTrackerUseCase) Open(ctx context.Context, req inbound.OpenTicketRequest) (*entity.HallucinationTicket, error) {
	if req.DomainID == "" {
		return nil, apperr.MissingField("domain_id")
	}
	if req.FalseClaim == "" {
		return nil, apperr.MissingField("false_claim")
	}

	ticket := entity.NewHallucinationTicket(uuid.NewString(), req.DomainID, req.Source,
		req.TriggeringQuery, req.FalseClaim, req.Severity, uc.now())

	if err := uc.repo.Create(ctx, ticket); err != nil {
		return nil, storeErr("ticket create", err)
	}

	_, err := uc.audit.Append(ctx, entity.AuditEntry{
		DomainID:   ticket.DomainID,
		Timestamp:  ticket.DetectedAt,
		ActionType: entity.ActionTicketOpened,
		ActionDetail: entity.TicketDetail{
			TicketID: ticket.ID,
			To:       ticket.Status,
			Severity: ticket.Severity,
		},
		InitiatedBy: entity.InitiatorAgent,
		Outcome:     entity.OutcomeSuccess,
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info(ctx, "Hallucination ticket opened", map[string]interface{}{
		"ticket_id": ticket.ID,
		"domain_id": ticket.DomainID,
		"severity":  ticket.Severity,
		"source":    ticket.Source,
	})

	if ticket.Severity >= entity.AlertSeverity {
		sendAlert(ctx, uc.notifier, uc.logger, outbound.Alert{
			Type:      outbound.AlertHallucinationSevere,
			DomainID:  ticket.DomainID,
			Subject:   fmt.Sprintf("Severe hallucination detected (severity %d)", ticket.Severity),
			Message:   ticket.FalseClaim,
			Data:      map[string]interface{}{"ticket_id": ticket.ID, "source": ticket.Source},
			CreatedAt: ticket.DetectedAt,
		})
	}
	return ticket, nil
}

// Advance moves a ticket strictly forward. Any backward or same-rank move,
// and any move out of a terminal status, is an InvalidTransition.
func (uc *TicketTrackerUseCase) Advance(ctx context.Context, ticketID string, target entity.TicketStatus, evidence string) (*entity.HallucinationTicket, error) {
	ticket, err := uc.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	from := ticket.Status
	now := uc.now()
	if err := ticket.Advance(target, evidence, now); err != nil {
		logger.LogPolicyEvent(ctx, uc.logger, "ticket_transition_rejected", "LOW", map[string]interface{}{
			"ticket_id": ticket.ID,
			"from":      from,
			"to":        target,
		})
		return nil, err
	}

	if err := uc.repo.SaveTransition(ctx, ticket, from); err != nil {
		return nil, storeErr("ticket save transition", err)
	}

	_, err = uc.audit.Append(ctx, entity.AuditEntry{
		DomainID:   ticket.DomainID,
		Timestamp:  now,
		ActionType: entity.ActionTicketAdvanced,
		ActionDetail: entity.TicketDetail{
			TicketID: ticket.ID,
			From:     from,
			To:       target,
			Severity: ticket.Severity,
		},
		InitiatedBy: entity.InitiatorAgent,
		Outcome:     entity.OutcomeSuccess,
		Notes:       evidence,
	})
	if err != nil {
		return nil, err
	}

	logger.LogGovernedAction(ctx, uc.logger, "ticket_advanced", ticket.DomainID, string(entity.OutcomeSuccess), map[string]interface{}{
		"ticket_id": ticket.ID,
		"from":      from,
		"to":        target,
	})
	return ticket, nil
}

func (uc *TicketTrackerUseCase) AssignBrief(ctx context.Context, ticketID, briefID string) error {
	if briefID == "" {
		return apperr.MissingField("brief_id")
	}
	if err := uc.repo.AssignBrief(ctx, ticketID, briefID); err != nil {
		return storeErr("ticket assign brief", err)
	}
	return nil
}

// List returns tickets with the most severe first
func (uc *TicketTrackerUseCase) List(ctx context.Context, domainID string, status *entity.TicketStatus) ([]*entity.HallucinationTicket, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.InvalidRequest("unknown ticket status: " + string(*status))
	}
	tickets, err := uc.repo.List(ctx, entity.TicketFilter{DomainID: domainID, Status: status})
	if err != nil {
		return nil, storeErr("ticket list", err)
	}
	return tickets, nil
}

func (uc *TicketTrackerUseCase) Get(ctx context.Context, ticketID string) (*entity.HallucinationTicket, error) {
	if ticketID == "" {
		return nil, apperr.MissingField("ticket_id")
	}
	ticket, err := uc.repo.FindByID(ctx, ticketID)
	if err != nil {
		return nil, storeErr("ticket load", err)
	}
	return ticket, nil
}

func (uc *TicketTrackerUseCase) FindByBrief(ctx context.Context, briefID string) (*entity.HallucinationTicket, error) {
	ticket, err := uc.repo.FindByBriefReference(ctx, briefID)
	if err != nil {
		return nil, storeErr("ticket load by brief", err)
	}
	return ticket, nil
}
