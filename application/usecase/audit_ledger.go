package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

const defaultAuditReadLimit = 100

// AuditLedgerUseCase appends and reads immutable audit entries
type AuditLedgerUseCase struct {
	repo   outbound.AuditRepository
	logger logger.Logger
	now    Clock
}

func NewAuditLedgerUseCase(repo outbound.AuditRepository, log logger.Logger, clock Clock) *AuditLedgerUseCase {
	return &AuditLedgerUseCase{
		repo:   repo,
		logger: log.WithFields(map[string]interface{}{"component": "audit_ledger"}),
		now:    orSystemClock(clock),
	}
}

// Append stores entry and returns its id. The id and timestamp are assigned
// here when the caller left them empty.
func (uc *AuditLedgerUseCase) Append(ctx context.Context, entry entity.AuditEntry) (string, error) {
	if entry.DomainID == "" {
		return "", apperr.MissingField("domain_id")
	}
	if entry.ActionType == "" {
		return "", apperr.MissingField("action_type")
	}
	if entry.Outcome == "" {
		return "", apperr.MissingField("outcome")
	}
	if entry.InitiatedBy == "" {
		entry.InitiatedBy = entity.InitiatorAgent
	}
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = uc.now()
	}
	if entry.ActionDetail == nil {
		entry.ActionDetail = entity.OpaqueDetail{}
	}

	if err := uc.repo.Append(ctx, entry); err != nil {
		uc.logger.Error(ctx, "Audit append failed", err, map[string]interface{}{
			"domain_id":   entry.DomainID,
			"action_type": entry.ActionType,
		})
		return "", storeErr("audit append", err)
	}

	uc.logger.Debug(ctx, "Audit entry appended", map[string]interface{}{
		"entry_id":    entry.EntryID,
		"domain_id":   entry.DomainID,
		"action_type": entry.ActionType,
		"outcome":     entry.Outcome,
	})
	return entry.EntryID, nil
}

// Read returns a domain's entries newest first
func (uc *AuditLedgerUseCase) Read(ctx context.Context, domainID string, limit int) ([]entity.AuditEntry, error) {
	if domainID == "" {
		return nil, apperr.MissingField("domain_id")
	}
	if limit <= 0 {
		limit = defaultAuditReadLimit
	}
	entries, err := uc.repo.ListByDomain(ctx, domainID, limit)
	if err != nil {
		return nil, storeErr("audit read", err)
	}
	return entries, nil
}

func (uc *AuditLedgerUseCase) Get(ctx context.Context, entryID string) (entity.AuditEntry, error) {
	entry, err := uc.repo.FindByID(ctx, entryID)
	if err != nil {
		return entity.AuditEntry{}, storeErr("audit get", err)
	}
	return entry, nil
}

// Correct appends a correction entry pointing at originalID. The original is
// left exactly as it was.
func (uc *AuditLedgerUseCase) Correct(ctx context.Context, originalID string, initiatedBy entity.Initiator, outcome entity.Outcome, notes string) (string, error) {
	original, err := uc.Get(ctx, originalID)
	if err != nil {
		return "", err
	}
	return uc.Append(ctx, entity.NewCorrection(original, initiatedBy, outcome, notes))
}
