package status

import (
	"fmt"

	"github.com/jbweber/virtfleet/api/v1alpha1"
)

// TransitionToConnecting transitions the session phase to Connecting.
// This should be called before dialing the host.
func TransitionToConnecting(st *v1alpha1.HypervisorStatus) error {
	// A second attempt may not start while one is running
	if st.Phase != v1alpha1.PhaseDisconnected && st.Phase != "" {
		return fmt.Errorf("cannot transition to Connecting from phase %s", st.Phase)
	}

	st.Phase = v1alpha1.PhaseConnecting
	return nil
}

// TransitionToConnected transitions the session phase to Connected.
// This should be called only after the session is subscribed and the cache is loaded.
func TransitionToConnected(st *v1alpha1.HypervisorStatus) error {
	if st.Phase != v1alpha1.PhaseConnecting {
		return fmt.Errorf("cannot transition to Connected from phase %s", st.Phase)
	}

	st.Phase = v1alpha1.PhaseConnected
	st.ConnectAttempts = 0
	st.LastConnected = v1alpha1.Now()
	SetCondition(st, v1alpha1.ConditionConnected, v1alpha1.ConditionTrue, "SessionEstablished", "libvirt session is open")
	return nil
}

// TransitionToDisconnected transitions the session phase to Disconnected.
// This can happen from any phase; reason and message describe the cause.
func TransitionToDisconnected(st *v1alpha1.HypervisorStatus, reason, message string) {
	if st.Phase == v1alpha1.PhaseConnecting {
		st.ConnectAttempts++
	}

	st.Phase = v1alpha1.PhaseDisconnected
	SetCondition(st, v1alpha1.ConditionConnected, v1alpha1.ConditionFalse, reason, message)
	SetCondition(st, v1alpha1.ConditionSubscribed, v1alpha1.ConditionFalse, reason, "no session")
	SetCondition(st, v1alpha1.ConditionSynchronized, v1alpha1.ConditionFalse, reason, "cache cleared")
}

// IsConnected returns true if the phase is Connected.
func IsConnected(phase v1alpha1.ConnectionPhase) bool {
	return phase == v1alpha1.PhaseConnected
}
