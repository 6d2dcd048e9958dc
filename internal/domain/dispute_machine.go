package domain

import "strings"

// DisputeAction names a command against the dispute state machine.
type DisputeAction string

const (
	ActionSubmitEvidence     DisputeAction = "submit_evidence"
	ActionAgentRespond       DisputeAction = "agent_respond"
	ActionRequestAdminReview DisputeAction = "request_admin_review"
	ActionEscalate           DisputeAction = "escalate"
	ActionResolveRefund      DisputeAction = "admin_resolve_refund"
	ActionResolvePartial     DisputeAction = "admin_resolve_partial"
	ActionResolveDenied      DisputeAction = "admin_resolve_denied"
	ActionTravelerWithdraw   DisputeAction = "traveler_withdraw"
	ActionSystemExpire       DisputeAction = "system_expire"
)

// disputeEdge is one allowed edge; Actors lists who may traverse it.
type disputeEdge struct {
	From   DisputeState
	Action DisputeAction
	To     DisputeState
	Actors []ActorType
}

var disputeTransitions = []disputeEdge{
	{DisputeStatePendingEvidence, ActionSubmitEvidence, DisputeStateEvidenceSubmitted, []ActorType{ActorTraveler}},
	{DisputeStateEvidenceSubmitted, ActionSubmitEvidence, DisputeStateEvidenceSubmitted, []ActorType{ActorTraveler}},

	{DisputeStatePendingEvidence, ActionAgentRespond, DisputeStateAgentResponded, []ActorType{ActorAgent}},
	{DisputeStateEvidenceSubmitted, ActionAgentRespond, DisputeStateAgentResponded, []ActorType{ActorAgent}},

	{DisputeStateAgentResponded, ActionRequestAdminReview, DisputeStateUnderAdminReview, []ActorType{ActorTraveler, ActorAgent, ActorAdmin}},
	{DisputeStateUnderAdminReview, ActionEscalate, DisputeStateEscalated, []ActorType{ActorAdmin}},

	{DisputeStateUnderAdminReview, ActionResolveRefund, DisputeStateResolvedRefund, []ActorType{ActorAdmin}},
	{DisputeStateUnderAdminReview, ActionResolvePartial, DisputeStateResolvedPartial, []ActorType{ActorAdmin}},
	{DisputeStateUnderAdminReview, ActionResolveDenied, DisputeStateResolvedDenied, []ActorType{ActorAdmin}},
	{DisputeStateEscalated, ActionResolveRefund, DisputeStateResolvedRefund, []ActorType{ActorAdmin}},
	{DisputeStateEscalated, ActionResolvePartial, DisputeStateResolvedPartial, []ActorType{ActorAdmin}},
	{DisputeStateEscalated, ActionResolveDenied, DisputeStateResolvedDenied, []ActorType{ActorAdmin}},

	// Traveler may withdraw from any non-terminal state.
	{DisputeStatePendingEvidence, ActionTravelerWithdraw, DisputeStateClosedWithdrawn, []ActorType{ActorTraveler}},
	{DisputeStateEvidenceSubmitted, ActionTravelerWithdraw, DisputeStateClosedWithdrawn, []ActorType{ActorTraveler}},
	{DisputeStateAgentResponded, ActionTravelerWithdraw, DisputeStateClosedWithdrawn, []ActorType{ActorTraveler}},
	{DisputeStateUnderAdminReview, ActionTravelerWithdraw, DisputeStateClosedWithdrawn, []ActorType{ActorTraveler}},
	{DisputeStateEscalated, ActionTravelerWithdraw, DisputeStateClosedWithdrawn, []ActorType{ActorTraveler}},

	// Response-deadline breach, driven by the background sweep.
	{DisputeStatePendingEvidence, ActionSystemExpire, DisputeStateClosedExpired, []ActorType{ActorSystem}},
	{DisputeStateEvidenceSubmitted, ActionSystemExpire, DisputeStateClosedExpired, []ActorType{ActorSystem}},
}

func disputeEdgeFor(from DisputeState, action DisputeAction) (disputeEdge, bool) {
	for _, e := range disputeTransitions {
		if e.From == from && e.Action == action {
			return e, true
		}
	}
	return disputeEdge{}, false
}

func (e disputeEdge) allows(actor ActorType) bool {
	for _, a := range e.Actors {
		if a == actor {
			return true
		}
	}
	return false
}

// AttemptDisputeTransition validates one action against the dispute's current
// state. The reason is mandatory on every state change and is checked before
// the table is consulted. The subjective-complaint gate on refund-eligible
// outcomes is enforced here as well as in the refund layer.
func AttemptDisputeTransition(d Dispute, action DisputeAction, actor Actor, reason string) (DisputeState, error) {
	if strings.TrimSpace(reason) == "" {
		return d.State, &ValidationError{Field: "reason", Message: "a non-empty reason is required for every dispute transition"}
	}
	if err := actor.Validate(); err != nil {
		return d.State, err
	}

	edge, ok := disputeEdgeFor(d.State, action)
	if !ok {
		return d.State, &InvalidTransitionError{
			EntityType: "dispute",
			Current:    string(d.State),
			Event:      string(action),
		}
	}
	if !edge.allows(actor.Type) {
		return d.State, &InvalidTransitionError{
			EntityType: "dispute",
			Current:    string(d.State),
			Event:      string(action),
			Actor:      actor.Type,
		}
	}

	if d.IsSubjectiveComplaint && edge.To.RefundEligible() {
		return d.State, &SubjectiveComplaintError{Reason: string(d.Category)}
	}

	return edge.To, nil
}

var AllDisputeStates = []DisputeState{
	DisputeStatePendingEvidence, DisputeStateEvidenceSubmitted,
	DisputeStateAgentResponded, DisputeStateUnderAdminReview,
	DisputeStateEscalated, DisputeStateResolvedRefund,
	DisputeStateResolvedPartial, DisputeStateResolvedDenied,
	DisputeStateClosedWithdrawn, DisputeStateClosedExpired,
}

var AllDisputeActions = []DisputeAction{
	ActionSubmitEvidence, ActionAgentRespond, ActionRequestAdminReview,
	ActionEscalate, ActionResolveRefund, ActionResolvePartial,
	ActionResolveDenied, ActionTravelerWithdraw, ActionSystemExpire,
}
