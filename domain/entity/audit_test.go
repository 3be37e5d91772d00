package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionDetail_RoundTripKeepsVariant(t *testing.T) {
	details := []ActionDetail{
		ApprovalDetail{ApprovalID: "a1", ItemKind: ItemKindBrief, RiskLevel: RiskHigh, Decision: DecisionApprove},
		DeploymentDetail{DeploymentID: "dep1", Target: "/faq", RollbackExpiresAt: testNow},
		RollbackDetail{DeploymentID: "dep1", Target: "/faq"},
		TicketDetail{TicketID: "t1", From: TicketStatusOpen, To: TicketStatusBriefGenerated, Severity: 9},
		BriefDetail{BriefID: "b1", Engine: "mock", Cost: 0.25},
		BlockedDetail{Stage: "budget", Reason: "exceeded"},
		OpaqueDetail{"note": "free form"},
	}

	for _, d := range details {
		raw, err := EncodeActionDetail(d)
		require.NoError(t, err)

		decoded, err := DecodeActionDetail(raw)
		require.NoError(t, err)
		assert.Equal(t, d.DetailKind(), decoded.DetailKind())
		assert.Equal(t, d, decoded)
	}
}

func TestAuditEntry_CloneIsIndependent(t *testing.T) {
	approvedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	original := AuditEntry{
		EntryID:      "e1",
		ActionDetail: OpaqueDetail{"k": "v"},
		ApprovedAt:   &approvedAt,
	}

	clone := original.Clone()
	clone.ActionDetail.(OpaqueDetail)["k"] = "changed"
	*clone.ApprovedAt = approvedAt.Add(time.Hour)

	assert.Equal(t, "v", original.ActionDetail.(OpaqueDetail)["k"])
	assert.Equal(t, approvedAt, *original.ApprovedAt)
}

func TestNewCorrection_ReferencesOriginal(t *testing.T) {
	original := AuditEntry{EntryID: "e1", DomainID: "d1", ActionType: ActionContentDeployed, Outcome: OutcomeSuccess}

	correction := NewCorrection(original, InitiatorOperator, OutcomeFailed, "publish was partial")

	assert.Equal(t, "e1", correction.SnapshotReference)
	assert.Equal(t, ActionCorrection, correction.ActionType)
	assert.Equal(t, "d1", correction.DomainID)
	assert.Equal(t, OutcomeSuccess, original.Outcome)
}
