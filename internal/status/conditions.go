// Package status records the result of proposal attempts in the status of
// a Proposal document: its phase, its conditions and the devices deleted
// and created.
package status

import (
	"time"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
)

// SetCondition adds or updates a condition in the proposal status.
// LastTransitionTime only moves when the status changes.
func SetCondition(p *v1alpha1.Proposal, condType string, status v1alpha1.ConditionStatus, reason, message string) {
	now := v1alpha1.Time{Time: time.Now()}

	for i := range p.Status.Conditions {
		existing := &p.Status.Conditions[i]
		if existing.Type != condType {
			continue
		}
		if existing.Status != status {
			existing.LastTransitionTime = now
		}
		existing.Status = status
		existing.Reason = reason
		existing.Message = message
		existing.ObservedGeneration = p.Generation
		return
	}

	p.Status.Conditions = append(p.Status.Conditions, v1alpha1.Condition{
		Type:               condType,
		Status:             status,
		ObservedGeneration: p.Generation,
		LastTransitionTime: now,
		Reason:             reason,
		Message:            message,
	})
}

// GetCondition returns a condition by type, or nil if not found.
func GetCondition(p *v1alpha1.Proposal, condType string) *v1alpha1.Condition {
	for i := range p.Status.Conditions {
		if p.Status.Conditions[i].Type == condType {
			return &p.Status.Conditions[i]
		}
	}
	return nil
}

// IsConditionTrue returns true if the condition exists and has status True.
func IsConditionTrue(p *v1alpha1.Proposal, condType string) bool {
	cond := GetCondition(p, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionTrue
}

// IsConditionFalse returns true if the condition exists and has status False.
func IsConditionFalse(p *v1alpha1.Proposal, condType string) bool {
	cond := GetCondition(p, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionFalse
}
