// Package status provides utilities for managing Hypervisor status fields,
// including conditions and session phase transitions.
package status

import (
	"github.com/jbweber/virtfleet/api/v1alpha1"
)

// SetCondition adds or updates a condition in the hypervisor status.
// The LastTransitionTime is only updated if the status changes.
func SetCondition(st *v1alpha1.HypervisorStatus, condType string, status v1alpha1.ConditionStatus, reason, message string) {
	now := v1alpha1.Now()

	for i := range st.Conditions {
		if st.Conditions[i].Type == condType {
			existing := &st.Conditions[i]

			if existing.Status != status {
				existing.LastTransitionTime = now
			}

			existing.Status = status
			existing.Reason = reason
			existing.Message = message
			return
		}
	}

	st.Conditions = append(st.Conditions, v1alpha1.Condition{
		Type:               condType,
		Status:             status,
		LastTransitionTime: now,
		Reason:             reason,
		Message:            message,
	})
}

// GetCondition returns a condition by type, or nil if not found.
func GetCondition(st *v1alpha1.HypervisorStatus, condType string) *v1alpha1.Condition {
	for i := range st.Conditions {
		if st.Conditions[i].Type == condType {
			return &st.Conditions[i]
		}
	}
	return nil
}

// IsConditionTrue returns true if the condition exists and has status True.
func IsConditionTrue(st *v1alpha1.HypervisorStatus, condType string) bool {
	cond := GetCondition(st, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionTrue
}

// IsConditionFalse returns true if the condition exists and has status False.
func IsConditionFalse(st *v1alpha1.HypervisorStatus, condType string) bool {
	cond := GetCondition(st, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionFalse
}

// MarkSubscribed marks the subscription condition as True.
func MarkSubscribed(st *v1alpha1.HypervisorStatus) {
	SetCondition(st, v1alpha1.ConditionSubscribed, v1alpha1.ConditionTrue, "EventsRegistered", "domain and pool event subscriptions registered")
}

// MarkSubscribeFailed marks the subscription condition as False.
func MarkSubscribeFailed(st *v1alpha1.HypervisorStatus, err error) {
	SetCondition(st, v1alpha1.ConditionSubscribed, v1alpha1.ConditionFalse, "SubscribeFailed", err.Error())
}

// MarkSynchronized marks the cache condition as True.
func MarkSynchronized(st *v1alpha1.HypervisorStatus) {
	SetCondition(st, v1alpha1.ConditionSynchronized, v1alpha1.ConditionTrue, "CacheLoaded", "virtual machines and storage pools loaded")
}

// MarkSyncFailed marks the cache condition as False.
func MarkSyncFailed(st *v1alpha1.HypervisorStatus, err error) {
	SetCondition(st, v1alpha1.ConditionSynchronized, v1alpha1.ConditionFalse, "LoadFailed", err.Error())
}
