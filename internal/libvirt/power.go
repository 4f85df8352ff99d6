package libvirt

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"go.uber.org/zap"

	"github.com/jbweber/virtfleet/internal/hypervisor"
	"github.com/jbweber/virtfleet/internal/mirror"
)

// SetDomainState moves a domain towards the requested power state. The
// host reports the result as lifecycle events.
func (s *Session) SetDomainState(ctx context.Context, id string, action hypervisor.PowerAction) error {
	dom, err := s.lookupDomain(id)
	if err != nil {
		return err
	}

	switch action {
	case hypervisor.PowerRunning:
		err = s.l.DomainCreate(dom)
	case hypervisor.PowerShutdown:
		err = s.l.DomainShutdownFlags(dom, libvirt.DomainShutdownAcpiPowerBtn)
	case hypervisor.PowerShutoff:
		err = s.l.DomainDestroy(dom)
	case hypervisor.PowerSuspend:
		err = s.l.DomainSuspend(dom)
	case hypervisor.PowerResume:
		err = s.l.DomainResume(dom)
	case hypervisor.PowerReboot:
		err = s.l.DomainReboot(dom, 0)
	case hypervisor.PowerReset:
		err = s.l.DomainReset(dom, 0)
	case hypervisor.PowerPause:
		err = s.l.DomainManagedSave(dom, 0)
	case hypervisor.PowerRestore:
		err = s.restore(dom)
	default:
		return fmt.Errorf("%w %q", hypervisor.ErrInvalidState, action)
	}
	if err != nil {
		return fmt.Errorf("failed to set domain state to %s: %w", action, err)
	}

	s.logger.Info("domain state requested", zap.String("domain", dom.Name), zap.String("action", string(action)))
	return nil
}

// restore starts from the managed save image and resumes the guest if the
// image was saved paused.
func (s *Session) restore(dom libvirt.Domain) error {
	if err := s.l.DomainCreate(dom); err != nil {
		return err
	}
	state, _, err := s.domainState(dom)
	if err != nil {
		return err
	}
	if state == mirror.PowerPaused {
		return s.l.DomainResume(dom)
	}
	return nil
}
