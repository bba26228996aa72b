package status

import (
	"errors"
	"testing"
	"time"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/outcome"
)

func TestSetCondition(t *testing.T) {
	p := v1alpha1.NewProposal("test")

	SetCondition(p, v1alpha1.ConditionSpaceAllocated, v1alpha1.ConditionFalse, "Waiting", "first")
	if len(p.Status.Conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(p.Status.Conditions))
	}
	first := p.Status.Conditions[0].LastTransitionTime

	time.Sleep(10 * time.Millisecond)
	SetCondition(p, v1alpha1.ConditionSpaceAllocated, v1alpha1.ConditionFalse, "StillWaiting", "second")
	cond := GetCondition(p, v1alpha1.ConditionSpaceAllocated)
	if cond.Reason != "StillWaiting" || cond.Message != "second" {
		t.Errorf("condition not updated: %+v", cond)
	}
	if !cond.LastTransitionTime.Equal(first.Time) {
		t.Error("LastTransitionTime should not change when status is unchanged")
	}

	time.Sleep(10 * time.Millisecond)
	SetCondition(p, v1alpha1.ConditionSpaceAllocated, v1alpha1.ConditionTrue, "Done", "third")
	cond = GetCondition(p, v1alpha1.ConditionSpaceAllocated)
	if !cond.LastTransitionTime.After(first.Time) {
		t.Error("LastTransitionTime should move when status changes")
	}
	if len(p.Status.Conditions) != 1 {
		t.Errorf("expected 1 condition, got %d", len(p.Status.Conditions))
	}

	if GetCondition(p, v1alpha1.ConditionApplied) != nil {
		t.Error("expected nil for a missing condition")
	}
}

func TestTransitionToProposing(t *testing.T) {
	tests := []struct {
		name      string
		phase     v1alpha1.ProposalPhase
		wantError bool
	}{
		{name: "from Pending", phase: v1alpha1.ProposalPhasePending},
		{name: "from Proposed", phase: v1alpha1.ProposalPhaseProposed, wantError: true},
		{name: "from Failed", phase: v1alpha1.ProposalPhaseFailed, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := v1alpha1.NewProposal("test")
			p.SetPhase(tt.phase)

			err := TransitionToProposing(p)
			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				if p.GetPhase() != tt.phase {
					t.Errorf("Phase should not change on error, got %s", p.GetPhase())
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if p.GetPhase() != v1alpha1.ProposalPhaseProposing {
				t.Errorf("Expected phase Proposing, got %s", p.GetPhase())
			}
		})
	}
}

func TestRecordOutcome(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p := v1alpha1.NewProposal("test")
		if err := TransitionToProposing(p); err != nil {
			t.Fatal(err)
		}
		o := outcome.Success(devicegraph.New(), []string{"/dev/sda1"}, []string{"/dev/sda1", "/dev/sda2"})
		o.Description = "without snapshots"

		if err := RecordOutcome(p, o); err != nil {
			t.Fatalf("RecordOutcome() error = %v", err)
		}
		if p.GetPhase() != v1alpha1.ProposalPhaseProposed {
			t.Errorf("phase = %s, want Proposed", p.GetPhase())
		}
		if !IsConditionTrue(p, v1alpha1.ConditionSpaceAllocated) {
			t.Error("SpaceAllocated should be True")
		}
		if !IsConditionFalse(p, v1alpha1.ConditionApplied) {
			t.Error("Applied should be False")
		}
		if p.Status.Description != "without snapshots" || len(p.Status.Created) != 2 {
			t.Errorf("status = %+v", p.Status)
		}
	})

	t.Run("no disk space", func(t *testing.T) {
		p := v1alpha1.NewProposal("test")
		_ = TransitionToProposing(p)

		if err := RecordOutcome(p, outcome.Failure(&outcome.NoDiskSpaceError{VG: "system"})); err != nil {
			t.Fatalf("RecordOutcome() error = %v", err)
		}
		if p.GetPhase() != v1alpha1.ProposalPhaseFailed {
			t.Errorf("phase = %s, want Failed", p.GetPhase())
		}
		if cond := GetCondition(p, v1alpha1.ConditionSpaceAllocated); cond.Reason != ReasonNoDiskSpace {
			t.Errorf("reason = %s, want %s", cond.Reason, ReasonNoDiskSpace)
		}
	})

	t.Run("other failure", func(t *testing.T) {
		p := v1alpha1.NewProposal("test")
		_ = TransitionToProposing(p)
		_ = RecordOutcome(p, outcome.Failure(errors.New("boom")))
		if cond := GetCondition(p, v1alpha1.ConditionSpaceAllocated); cond.Reason != ReasonFailed || cond.Message != "boom" {
			t.Errorf("condition = %+v", cond)
		}
	})

	t.Run("wrong phase", func(t *testing.T) {
		p := v1alpha1.NewProposal("test")
		if err := RecordOutcome(p, outcome.Failure(errors.New("boom"))); err == nil {
			t.Error("expected error recording an outcome while Pending")
		}
	})
}

func TestMarkApplied(t *testing.T) {
	p := v1alpha1.NewProposal("test")
	if err := MarkApplied(p); err == nil {
		t.Error("expected error applying a pending proposal")
	}

	_ = TransitionToProposing(p)
	_ = RecordOutcome(p, outcome.Success(devicegraph.New(), nil, nil))
	if err := MarkApplied(p); err != nil {
		t.Fatalf("MarkApplied() error = %v", err)
	}
	if p.GetPhase() != v1alpha1.ProposalPhaseApplied || !IsConditionTrue(p, v1alpha1.ConditionApplied) {
		t.Errorf("status = %+v", p.Status)
	}
	if !IsTerminal(p.GetPhase()) {
		t.Error("Applied should be terminal")
	}
	if IsTerminal(v1alpha1.ProposalPhaseProposed) {
		t.Error("Proposed should not be terminal")
	}
}
