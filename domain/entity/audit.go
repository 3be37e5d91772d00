package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType names a governed action recorded in the ledger
type ActionType string

const (
	ActionApprovalCreated  ActionType = "approval_created"
	ActionApprovalDecided  ActionType = "approval_decided"
	ActionBriefGenerated   ActionType = "brief_generated"
	ActionContentDeployed  ActionType = "content_deployed"
	ActionRollback         ActionType = "deployment_rolled_back"
	ActionTicketOpened     ActionType = "ticket_opened"
	ActionTicketAdvanced   ActionType = "ticket_advanced"
	ActionExecutionBlocked ActionType = "execution_blocked"
	ActionCorrection       ActionType = "correction"
)

// Initiator identifies who started a governed action
type Initiator string

const (
	InitiatorAgent    Initiator = "agent"
	InitiatorOperator Initiator = "operator"
	InitiatorVoice    Initiator = "voice-interface"
)

// Outcome is the recorded result of a governed action
type Outcome string

const (
	OutcomePending    Outcome = "pending"
	OutcomeSuccess    Outcome = "success"
	OutcomeFailed     Outcome = "failed"
	OutcomeRolledBack Outcome = "rolled_back"
)

// ActionDetail is the structured payload of an audit entry. Known actions use
// the typed variants below; OpaqueDetail is reserved for free-form notes.
type ActionDetail interface {
	DetailKind() string
}

type ApprovalDetail struct {
	ApprovalID    string       `json:"approval_id"`
	ApprovalType  ApprovalType `json:"approval_type"`
	ItemKind      ItemKind     `json:"item_kind"`
	ItemReference string       `json:"item_reference"`
	RiskLevel     RiskLevel    `json:"risk_level"`
	Decision      Decision     `json:"decision,omitempty"`
	ApplyError    string       `json:"apply_error,omitempty"`
}

func (ApprovalDetail) DetailKind() string { return "approval" }

type DeploymentDetail struct {
	DeploymentID      string    `json:"deployment_id"`
	Target            string    `json:"target"`
	ActionType        string    `json:"action_type"`
	RollbackExpiresAt time.Time `json:"rollback_expires_at"`
	Error             string    `json:"error,omitempty"`
}

func (DeploymentDetail) DetailKind() string { return "deployment" }

type RollbackDetail struct {
	DeploymentID string `json:"deployment_id"`
	Target       string `json:"target"`
	Error        string `json:"error,omitempty"`
}

func (RollbackDetail) DetailKind() string { return "rollback" }

type TicketDetail struct {
	TicketID string       `json:"ticket_id"`
	From     TicketStatus `json:"from,omitempty"`
	To       TicketStatus `json:"to"`
	Severity int          `json:"severity"`
}

func (TicketDetail) DetailKind() string { return "ticket" }

type BriefDetail struct {
	BriefID  string  `json:"brief_id"`
	TicketID string  `json:"ticket_id,omitempty"`
	Engine   string  `json:"engine,omitempty"`
	Cost     float64 `json:"cost"`
	Error    string  `json:"error,omitempty"`
}

func (BriefDetail) DetailKind() string { return "brief" }

type BlockedDetail struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

func (BlockedDetail) DetailKind() string { return "blocked" }

// OpaqueDetail carries free-form detail where no schema is known
type OpaqueDetail map[string]interface{}

func (OpaqueDetail) DetailKind() string { return "opaque" }

type detailEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeActionDetail serializes a detail together with its variant tag
func EncodeActionDetail(detail ActionDetail) ([]byte, error) {
	if detail == nil {
		detail = OpaqueDetail{}
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action detail: %w", err)
	}
	return json.Marshal(detailEnvelope{Kind: detail.DetailKind(), Data: data})
}

// DecodeActionDetail restores a detail encoded by EncodeActionDetail
func DecodeActionDetail(raw []byte) (ActionDetail, error) {
	if len(raw) == 0 {
		return OpaqueDetail{}, nil
	}
	var env detailEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal action detail: %w", err)
	}

	var detail ActionDetail
	var err error
	switch env.Kind {
	case "approval":
		var d ApprovalDetail
		err = json.Unmarshal(env.Data, &d)
		detail = d
	case "deployment":
		var d DeploymentDetail
		err = json.Unmarshal(env.Data, &d)
		detail = d
	case "rollback":
		var d RollbackDetail
		err = json.Unmarshal(env.Data, &d)
		detail = d
	case "ticket":
		var d TicketDetail
		err = json.Unmarshal(env.Data, &d)
		detail = d
	case "brief":
		var d BriefDetail
		err = json.Unmarshal(env.Data, &d)
		detail = d
	case "blocked":
		var d BlockedDetail
		err = json.Unmarshal(env.Data, &d)
		detail = d
	default:
		d := OpaqueDetail{}
		err = json.Unmarshal(env.Data, &d)
		detail = d
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s detail: %w", env.Kind, err)
	}
	return detail, nil
}

// AuditEntry is one immutable ledger record. It has no mutating methods;
// corrections are new entries pointing at the original via SnapshotReference.
type AuditEntry struct {
	EntryID           string       `json:"entry_id"`
	DomainID          string       `json:"domain_id"`
	Timestamp         time.Time    `json:"timestamp"`
	ActionType        ActionType   `json:"action_type"`
	ActionDetail      ActionDetail `json:"action_detail"`
	InitiatedBy       Initiator    `json:"initiated_by"`
	ApprovalGate      string       `json:"approval_gate,omitempty"`
	ApprovedBy        string       `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time   `json:"approved_at,omitempty"`
	Outcome           Outcome      `json:"outcome"`
	SnapshotReference string       `json:"snapshot_reference,omitempty"`
	Notes             string       `json:"notes,omitempty"`
}

// Clone returns a deep copy so stored entries never share memory with callers
func (e AuditEntry) Clone() AuditEntry {
	out := e
	if e.ApprovedAt != nil {
		t := *e.ApprovedAt
		out.ApprovedAt = &t
	}
	if opaque, ok := e.ActionDetail.(OpaqueDetail); ok {
		cp := make(OpaqueDetail, len(opaque))
		for k, v := range opaque {
			cp[k] = v
		}
		out.ActionDetail = cp
	}
	return out
}

// NewCorrection builds an entry that supersedes original without touching it
func NewCorrection(original AuditEntry, initiatedBy Initiator, outcome Outcome, notes string) AuditEntry {
	return AuditEntry{
		DomainID:          original.DomainID,
		ActionType:        ActionCorrection,
		ActionDetail:      OpaqueDetail{"corrected_action": string(original.ActionType)},
		InitiatedBy:       initiatedBy,
		Outcome:           outcome,
		SnapshotReference: original.EntryID,
		Notes:             notes,
	}
}
