package libvirt

import (
	"context"
	"errors"
	"testing"

	"github.com/digitalocean/go-libvirt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/virtfleet/internal/hypervisor"
	"github.com/jbweber/virtfleet/internal/mirror"
)

func TestSession_SetDomainState(t *testing.T) {
	tests := []struct {
		action hypervisor.PowerAction
		from   libvirt.DomainState
		calls  []string
		want   mirror.PowerState
	}{
		{hypervisor.PowerRunning, libvirt.DomainShutoff, []string{"create"}, mirror.PowerRunning},
		{hypervisor.PowerShutdown, libvirt.DomainRunning, []string{"shutdown"}, mirror.PowerShutdown},
		{hypervisor.PowerShutoff, libvirt.DomainRunning, []string{"destroy"}, mirror.PowerShutoff},
		{hypervisor.PowerSuspend, libvirt.DomainRunning, []string{"suspend"}, mirror.PowerPaused},
		{hypervisor.PowerResume, libvirt.DomainPaused, []string{"resume"}, mirror.PowerRunning},
		{hypervisor.PowerReboot, libvirt.DomainRunning, []string{"reboot"}, mirror.PowerRunning},
		{hypervisor.PowerReset, libvirt.DomainRunning, []string{"reset"}, mirror.PowerRunning},
		{hypervisor.PowerPause, libvirt.DomainRunning, []string{"managed_save"}, mirror.PowerShutoff},
		{hypervisor.PowerRestore, libvirt.DomainShutoff, []string{"create"}, mirror.PowerRunning},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			s, m := newTestSession(t)
			m.states["web-1"] = int32(tt.from)

			require.NoError(t, s.SetDomainState(context.Background(), testDomainID, tt.action))
			assert.Equal(t, tt.calls, m.powerCalls)

			state, _, err := s.DomainState(context.Background(), testDomainID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestSession_SetDomainStateShutdownUsesACPI(t *testing.T) {
	s, m := newTestSession(t)
	require.NoError(t, s.SetDomainState(context.Background(), testDomainID, hypervisor.PowerShutdown))
	assert.Equal(t, libvirt.DomainShutdownAcpiPowerBtn, m.shutdownFlags)
}

func TestSession_SetDomainStatePauseRestore(t *testing.T) {
	s, m := newTestSession(t)
	m.savePaused = true

	require.NoError(t, s.SetDomainState(context.Background(), testDomainID, hypervisor.PowerPause))
	require.NoError(t, s.SetDomainState(context.Background(), testDomainID, hypervisor.PowerRestore))
	assert.Equal(t, []string{"managed_save", "create", "resume"}, m.powerCalls)

	state, _, err := s.DomainState(context.Background(), testDomainID)
	require.NoError(t, err)
	assert.Equal(t, mirror.PowerRunning, state)
}

func TestSession_SetDomainStateErrors(t *testing.T) {
	s, m := newTestSession(t)

	err := s.SetDomainState(context.Background(), testDomainID, hypervisor.PowerAction("hibernate"))
	assert.ErrorIs(t, err, hypervisor.ErrInvalidState)
	assert.Empty(t, m.powerCalls)

	err = s.SetDomainState(context.Background(), "00000000-0000-0000-0000-000000000000", hypervisor.PowerRunning)
	assert.Error(t, err)

	m.PowerErr = errors.New("domain is already running")
	err = s.SetDomainState(context.Background(), testDomainID, hypervisor.PowerRunning)
	assert.ErrorContains(t, err, "failed to set domain state to running")
}
