package hypervisor

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/jbweber/virtfleet/api/v1alpha1"
	"github.com/jbweber/virtfleet/internal/config"
	"github.com/jbweber/virtfleet/internal/metrics"
	"github.com/jbweber/virtfleet/internal/mirror"
	"github.com/jbweber/virtfleet/internal/naming"
)

// Fleet owns one supervisor per configured host.
type Fleet struct {
	hosts  []*Supervisor
	byID   map[string]*Supervisor
	logger *zap.Logger
}

// NewFleet creates a supervisor for every host in cfg. m may be nil.
func NewFleet(cfg *config.Config, dialer Dialer, logger *zap.Logger, m *metrics.Metrics) *Fleet {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Fleet{
		byID:   make(map[string]*Supervisor, len(cfg.Hosts)),
		logger: logger,
	}
	for _, h := range cfg.Hosts {
		s := NewSupervisor(h, dialer, Options{
			ReconnectTimeout:  cfg.ReconnectTimeout,
			KeepAliveInterval: cfg.KeepAliveInterval,
			KeepAliveCount:    cfg.KeepAliveCount,
			TagsNamespace:     cfg.TagsNamespace,
			Logger:            logger,
			Metrics:           m,
		})
		f.hosts = append(f.hosts, s)
		f.byID[h.ID] = s
	}
	return f
}

// Run supervises every host until ctx is done and all supervisors returned.
func (f *Fleet) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range f.hosts {
		wg.Add(1)
		go func(s *Supervisor) {
			defer wg.Done()
			s.Run(ctx)
		}(s)
	}
	f.logger.Info("fleet started", zap.Int("hosts", len(f.hosts)))
	wg.Wait()
	f.logger.Info("fleet stopped")
}

// Hosts returns the supervisors in configuration order.
func (f *Fleet) Hosts() []*Supervisor {
	return append([]*Supervisor(nil), f.hosts...)
}

// Host returns the supervisor of hostID.
func (f *Fleet) Host(hostID string) (*Supervisor, error) {
	s, ok := f.byID[hostID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHost, hostID)
	}
	return s, nil
}

// IsConnected reports whether hostID has a live, loaded session.
func (f *Fleet) IsConnected(hostID string) bool {
	s, ok := f.byID[hostID]
	return ok && s.Connected()
}

// OnChange registers fn on every host.
func (f *Fleet) OnChange(fn ChangeFunc) {
	for _, s := range f.hosts {
		s.OnChange(fn)
	}
}

// ListVMs returns the cached VMs of one host.
func (f *Fleet) ListVMs(hostID string) ([]*mirror.VirtualMachine, error) {
	s, err := f.Host(hostID)
	if err != nil {
		return nil, err
	}
	return s.Cache().VMs(), nil
}

// AllVMs returns the cached VMs of every host, grouped by host.
func (f *Fleet) AllVMs() []*mirror.VirtualMachine {
	var out []*mirror.VirtualMachine
	for _, s := range f.hosts {
		out = append(out, s.Cache().VMs()...)
	}
	return out
}

// FindVM searches every cache for the VM. Returns nil if no host has it.
func (f *Fleet) FindVM(id string) *mirror.VirtualMachine {
	for _, s := range f.hosts {
		if vm, ok := s.Cache().VM(id); ok {
			return vm
		}
	}
	return nil
}

// LookupVM is FindVM that also returns the owning supervisor.
func (f *Fleet) LookupVM(id string) (*mirror.VirtualMachine, *Supervisor, error) {
	for _, s := range f.hosts {
		if vm, ok := s.Cache().VM(id); ok {
			return vm, s, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrVMNotFound, id)
}

// ListPools returns the cached pools of one host.
func (f *Fleet) ListPools(hostID string) ([]*mirror.StoragePool, error) {
	s, err := f.Host(hostID)
	if err != nil {
		return nil, err
	}
	return s.Cache().Pools(), nil
}

// AllPools returns the cached pools of every host.
func (f *Fleet) AllPools() []*mirror.StoragePool {
	var out []*mirror.StoragePool
	for _, s := range f.hosts {
		out = append(out, s.Cache().Pools()...)
	}
	return out
}

// FindPool searches every cache for the pool.
func (f *Fleet) FindPool(id string) (*mirror.StoragePool, error) {
	for _, s := range f.hosts {
		if p, ok := s.Cache().Pool(id); ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
}

// AllVolumes returns the volumes of every running pool, with their pools.
func (f *Fleet) AllVolumes() ([]mirror.StorageVolume, []*mirror.StoragePool) {
	var (
		vols  []mirror.StorageVolume
		owner []*mirror.StoragePool
	)
	for _, p := range f.AllPools() {
		for _, v := range p.Volumes {
			vols = append(vols, v)
			owner = append(owner, p)
		}
	}
	return vols, owner
}

// FindVolume resolves a volume id to the volume and its pool.
func (f *Fleet) FindVolume(id string) (*mirror.StorageVolume, *mirror.StoragePool, error) {
	poolID, index, err := naming.ParseVolumeID(id)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrVolumeNotFound, id)
	}
	p, err := f.FindPool(poolID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrVolumeNotFound, id)
	}
	if index >= len(p.Volumes) {
		return nil, nil, fmt.Errorf("%w: %s", ErrVolumeNotFound, id)
	}
	v := p.Volumes[index]
	return &v, p, nil
}

// OpenScreenshot starts a screenshot transfer of one display of a VM.
func (f *Fleet) OpenScreenshot(ctx context.Context, vmID string, display int) (Stream, error) {
	_, s, err := f.LookupVM(vmID)
	if err != nil {
		return nil, err
	}
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	return sess.OpenScreenshot(ctx, vmID, display)
}

// SetTags writes the tag list of a VM. The cache is updated by the
// resulting metadata change event, not here.
func (f *Fleet) SetTags(ctx context.Context, vmID string, tags []string) error {
	_, s, err := f.LookupVM(vmID)
	if err != nil {
		return err
	}
	sess, err := s.Session()
	if err != nil {
		return err
	}
	if err := sess.SetDomainTags(ctx, vmID, tags); err != nil {
		return fmt.Errorf("failed to set tags of %s: %w", vmID, err)
	}
	return nil
}

// SetState asks the host to move a VM to another power state. The cache
// follows through the lifecycle events the host emits.
func (f *Fleet) SetState(ctx context.Context, vmID string, action PowerAction) error {
	_, s, err := f.LookupVM(vmID)
	if err != nil {
		return err
	}
	sess, err := s.Session()
	if err != nil {
		return err
	}
	if err := sess.SetDomainState(ctx, vmID, action); err != nil {
		return fmt.Errorf("failed to set state of %s to %s: %w", vmID, action, err)
	}
	return nil
}

// DisplayURL returns the display-proxy URL of a VM.
func (f *Fleet) DisplayURL(vmID string) (string, error) {
	vm, s, err := f.LookupVM(vmID)
	if err != nil {
		return "", err
	}
	return DisplayURL(s.DisplayEndpoint(), vm)
}

// DisplayURL builds {endpoint}?host={listen}&port={port} from the first
// spice device, falling back to the first device with a port.
func DisplayURL(endpoint string, vm *mirror.VirtualMachine) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("%w: host has no display endpoint", ErrNoDisplay)
	}

	var g *mirror.Graphics
	for i := range vm.Graphics {
		if vm.Graphics[i].Port <= 0 {
			continue
		}
		if vm.Graphics[i].Type == "spice" {
			g = &vm.Graphics[i]
			break
		}
		if g == nil {
			g = &vm.Graphics[i]
		}
	}
	if g == nil {
		return "", fmt.Errorf("%w: %s has no graphics port", ErrNoDisplay, vm.ID)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse display endpoint: %w", err)
	}
	q := u.Query()
	q.Set("host", g.Listen)
	q.Set("port", strconv.Itoa(g.Port))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Hypervisors returns the public view of every host.
func (f *Fleet) Hypervisors() []*v1alpha1.Hypervisor {
	out := make([]*v1alpha1.Hypervisor, 0, len(f.hosts))
	for _, s := range f.hosts {
		out = append(out, s.Status())
	}
	return out
}

// Hypervisor returns the public view of one host.
func (f *Fleet) Hypervisor(hostID string) (*v1alpha1.Hypervisor, error) {
	s, err := f.Host(hostID)
	if err != nil {
		return nil, err
	}
	return s.Status(), nil
}
