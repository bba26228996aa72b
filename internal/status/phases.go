package status

import (
	"errors"
	"fmt"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
	"github.com/gilsonsouza/yast-storage-ng/internal/outcome"
)

// Condition reasons.
const (
	ReasonProposing    = "Proposing"
	ReasonAllocated    = "Allocated"
	ReasonNoDiskSpace  = "NoDiskSpace"
	ReasonFailed       = "ProposalFailed"
	ReasonApplied      = "Applied"
	ReasonApplyFailed  = "ApplyFailed"
	ReasonNotAttempted = "NotAttempted"
)

// TransitionToProposing moves a pending proposal to Proposing.
func TransitionToProposing(p *v1alpha1.Proposal) error {
	if p.GetPhase() != v1alpha1.ProposalPhasePending {
		return fmt.Errorf("cannot transition to Proposing from phase %s", p.GetPhase())
	}

	p.SetPhase(v1alpha1.ProposalPhaseProposing)
	SetCondition(p, v1alpha1.ConditionSpaceAllocated, v1alpha1.ConditionUnknown, ReasonProposing, "allocation attempts in progress")
	return nil
}

// RecordOutcome stores the outcome of a proposal in the status and moves
// the phase to Proposed or Failed.
func RecordOutcome(p *v1alpha1.Proposal, o outcome.Outcome) error {
	if p.GetPhase() != v1alpha1.ProposalPhaseProposing {
		return fmt.Errorf("cannot record an outcome in phase %s", p.GetPhase())
	}

	p.Status.Description = o.Description
	p.Status.Deleted = o.Deleted
	p.Status.Created = o.Created
	p.UpdateObservedGeneration()

	if o.Succeeded() {
		p.SetPhase(v1alpha1.ProposalPhaseProposed)
		SetCondition(p, v1alpha1.ConditionSpaceAllocated, v1alpha1.ConditionTrue, ReasonAllocated,
			fmt.Sprintf("%d devices created, %d deleted", len(o.Created), len(o.Deleted)))
		SetCondition(p, v1alpha1.ConditionApplied, v1alpha1.ConditionFalse, ReasonNotAttempted, "result not applied yet")
		return nil
	}

	reason := ReasonFailed
	if errors.Is(o.Err, outcome.ErrNoDiskSpace) {
		reason = ReasonNoDiskSpace
	}
	MarkFailed(p, v1alpha1.ConditionSpaceAllocated, reason, o.Err.Error())
	return nil
}

// MarkApplied moves a proposed proposal to Applied.
func MarkApplied(p *v1alpha1.Proposal) error {
	if p.GetPhase() != v1alpha1.ProposalPhaseProposed {
		return fmt.Errorf("cannot transition to Applied from phase %s", p.GetPhase())
	}

	p.SetPhase(v1alpha1.ProposalPhaseApplied)
	SetCondition(p, v1alpha1.ConditionApplied, v1alpha1.ConditionTrue, ReasonApplied, "devices written to the storage backend")
	return nil
}

// MarkFailed sets the given condition to False and the phase to Failed.
// This can happen from any phase.
func MarkFailed(p *v1alpha1.Proposal, condType, reason, message string) {
	SetCondition(p, condType, v1alpha1.ConditionFalse, reason, message)
	p.SetPhase(v1alpha1.ProposalPhaseFailed)
}

// IsTerminal returns true if nothing more will happen to the proposal.
func IsTerminal(phase v1alpha1.ProposalPhase) bool {
	return phase == v1alpha1.ProposalPhaseApplied || phase == v1alpha1.ProposalPhaseFailed
}
