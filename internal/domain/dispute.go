package domain

import "time"

type DisputeState string

const (
	DisputeStatePendingEvidence   DisputeState = "pending_evidence"
	DisputeStateEvidenceSubmitted DisputeState = "evidence_submitted"
	DisputeStateAgentResponded    DisputeState = "agent_responded"
	DisputeStateUnderAdminReview  DisputeState = "under_admin_review"
	DisputeStateEscalated         DisputeState = "escalated"
	DisputeStateResolvedRefund    DisputeState = "resolved_refund"
	DisputeStateResolvedPartial   DisputeState = "resolved_partial"
	DisputeStateResolvedDenied    DisputeState = "resolved_denied"
	DisputeStateClosedWithdrawn   DisputeState = "closed_withdrawn"
	DisputeStateClosedExpired     DisputeState = "closed_expired"
)

func (s DisputeState) Terminal() bool {
	switch s {
	case DisputeStateResolvedRefund, DisputeStateResolvedPartial,
		DisputeStateResolvedDenied, DisputeStateClosedWithdrawn,
		DisputeStateClosedExpired:
		return true
	}
	return false
}

// RefundEligible reports whether the terminal state carries a refund outcome.
// Subjective complaints must never reach one of these states.
func (s DisputeState) RefundEligible() bool {
	return s == DisputeStateResolvedRefund || s == DisputeStateResolvedPartial
}

type DisputeCategory string

const (
	DisputeCategoryServiceNotProvided DisputeCategory = "service_not_provided"
	DisputeCategoryPartialService     DisputeCategory = "partial_service"
	DisputeCategorySafety             DisputeCategory = "safety"
	DisputeCategoryMisrepresentation  DisputeCategory = "misrepresentation"
	DisputeCategoryOther              DisputeCategory = "other"
)

type Dispute struct {
	ID         string
	BookingID  string
	TravelerID string
	AgentID    string

	State       DisputeState
	Category    DisputeCategory
	Description string

	// IsSubjectiveComplaint is classified once at creation and never changes.
	IsSubjectiveComplaint bool

	AdminAssignedID string
	Resolution      string

	// FaultSplitPercent is set by the admin on a partial resolution and feeds
	// the refund amount calculation (share of the refundable amount owed to
	// the traveler).
	FaultSplitPercent int

	AgentResponseDeadline time.Time

	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// Evidence is an append-only attachment on a dispute. Limits on count, size
// and MIME type come from configuration.
type Evidence struct {
	ID         string
	DisputeID  string
	UploaderID string
	Filename   string
	MIMEType   string
	SizeBytes  int64
	FileURL    string
	CreatedAt  time.Time
}

// CanSubmitEvidence gates evidence uploads: only while the traveler-facing
// evidence window is open.
func CanSubmitEvidence(s DisputeState) bool {
	return s == DisputeStatePendingEvidence || s == DisputeStateEvidenceSubmitted
}
