package libvirt

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/digitalocean/go-libvirt"
	"go.uber.org/zap"

	"github.com/jbweber/virtfleet/internal/config"
	"github.com/jbweber/virtfleet/internal/event"
	"github.com/jbweber/virtfleet/internal/hypervisor"
	"github.com/jbweber/virtfleet/internal/logging"
	"github.com/jbweber/virtfleet/internal/metadata"
	"github.com/jbweber/virtfleet/internal/mirror"
	"github.com/jbweber/virtfleet/internal/storage"
)

// eventBuffer is the capacity of a session's merged event channel.
const eventBuffer = 64

// LibvirtClient is the subset of *libvirt.Libvirt a Session uses.
type LibvirtClient interface {
	metadata.LibvirtClient
	storage.LibvirtClient

	ConnectGetHostname() (string, error)
	ConnectGetLibVersion() (uint64, error)
	ConnectGetVersion() (uint64, error)
	NodeGetFreeMemory() (uint64, error)
	NodeGetInfo() ([32]int8, uint64, int32, int32, int32, int32, int32, int32, error)
	ConnectGetMaxVcpus(Type libvirt.OptString) (int32, error)
	ConnectGetCapabilities() (string, error)

	ConnectListAllDomains(NeedResults int32, Flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	DomainLookupByUUID(UUID libvirt.UUID) (libvirt.Domain, error)
	DomainGetState(Dom libvirt.Domain, Flags uint32) (int32, int32, error)
	DomainIsPersistent(Dom libvirt.Domain) (int32, error)
	DomainGetXMLDesc(Dom libvirt.Domain, Flags libvirt.DomainXMLFlags) (string, error)
	DomainScreenshot(Dom libvirt.Domain, ScreenshotStream io.Writer, Screen uint32, Flags uint32) (libvirt.OptString, error)

	DomainCreate(Dom libvirt.Domain) error
	DomainShutdownFlags(Dom libvirt.Domain, Flags libvirt.DomainShutdownFlagValues) error
	DomainDestroy(Dom libvirt.Domain) error
	DomainSuspend(Dom libvirt.Domain) error
	DomainResume(Dom libvirt.Domain) error
	DomainReboot(Dom libvirt.Domain, Flags libvirt.DomainRebootFlagValues) error
	DomainReset(Dom libvirt.Domain, Flags uint32) error
	DomainManagedSave(Dom libvirt.Domain, Flags uint32) error

	LifecycleEvents(ctx context.Context) (<-chan libvirt.DomainEventLifecycleMsg, error)
	SubscribeEvents(ctx context.Context, eventID libvirt.DomainEventID, dom libvirt.OptDomain) (<-chan interface{}, error)
	Disconnected() <-chan struct{}
}

// Options configures sessions.
type Options struct {
	DialTimeout      time.Duration
	PoolPollInterval time.Duration
	TagsNamespace    string
}

// Dialer opens go-libvirt sessions.
type Dialer struct {
	opts   Options
	logger *zap.Logger
}

// NewDialer creates a dialer from the fleet configuration.
func NewDialer(cfg *config.Config, logger *zap.Logger) *Dialer {
	return &Dialer{
		opts: Options{
			DialTimeout:      cfg.DialTimeout,
			PoolPollInterval: cfg.PoolPollInterval,
			TagsNamespace:    cfg.TagsNamespace,
		},
		logger: logging.ForPackage(logger, "libvirt"),
	}
}

// Dial connects to host and returns a session.
func (d *Dialer) Dial(ctx context.Context, host config.HostConfig) (hypervisor.Session, error) {
	client, err := ConnectWithContext(ctx, host, d.opts.DialTimeout)
	if err != nil {
		return nil, err
	}

	t := client.Target()
	logger := d.logger.With(zap.String("host_id", host.ID))
	logger.Debug("dialed", zap.String("transport", string(t.Transport)), zap.String("address", t.Address()))

	sess := NewSession(client.Libvirt(), client.Close, d.opts, logger)
	sess.ping = client.Ping
	return sess, nil
}

// Session implements hypervisor.Session on a go-libvirt connection.
type Session struct {
	l       LibvirtClient
	storage *storage.Manager
	opts    Options
	logger  *zap.Logger

	// ctx ends subscriptions on Close.
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
	closer    func() error
	// ping is the keep-alive round trip.
	ping func() error
}

// NewSession wraps a connected client. closer releases the connection.
func NewSession(l LibvirtClient, closer func() error, opts Options, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if closer == nil {
		closer = func() error { return nil }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		l:       l,
		storage: storage.NewManager(l),
		opts:    opts,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		closer:  closer,
		ping: func() error {
			if _, err := l.ConnectGetLibVersion(); err != nil {
				return fmt.Errorf("libvirt connection is dead: %w", err)
			}
			return nil
		},
	}
}

// Ping runs one keep-alive round trip. A call the host never answers is
// abandoned when ctx ends; it unblocks once the connection is closed.
func (s *Session) Ping(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.ping() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("keep-alive: %w", ctx.Err())
	}
}

// Info reads host attributes.
func (s *Session) Info(ctx context.Context) (hypervisor.HostInfo, error) {
	hostname, err := s.l.ConnectGetHostname()
	if err != nil {
		return hypervisor.HostInfo{}, fmt.Errorf("failed to get hostname: %w", err)
	}
	libVer, err := s.l.ConnectGetLibVersion()
	if err != nil {
		return hypervisor.HostInfo{}, fmt.Errorf("failed to get libvirt version: %w", err)
	}
	hvVer, err := s.l.ConnectGetVersion()
	if err != nil {
		return hypervisor.HostInfo{}, fmt.Errorf("failed to get hypervisor version: %w", err)
	}
	free, err := s.l.NodeGetFreeMemory()
	if err != nil {
		return hypervisor.HostInfo{}, fmt.Errorf("failed to get free memory: %w", err)
	}
	node, err := s.nodeInfo()
	if err != nil {
		return hypervisor.HostInfo{}, err
	}

	return hypervisor.HostInfo{
		Hostname:          hostname,
		LibVersion:        FormatVersion(libVer),
		HypervisorVersion: FormatVersion(hvVer),
		FreeMemoryBytes:   free,
		Node:              node,
	}, nil
}

// FormatVersion renders libvirt's major*1000000+minor*1000+release encoding.
func FormatVersion(v uint64) string {
	return fmt.Sprintf("%d.%d.%d", v/1000000, (v/1000)%1000, v%1000)
}

// ListDomains returns a mirror for every domain, active or not.
func (s *Session) ListDomains(ctx context.Context) ([]*mirror.VirtualMachine, error) {
	domains, _, err := s.l.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	out := make([]*mirror.VirtualMachine, 0, len(domains))
	for _, dom := range domains {
		vm, err := s.domainMirror(dom)
		if err != nil {
			return nil, fmt.Errorf("failed to load domain %s: %w", dom.Name, err)
		}
		out = append(out, vm)
	}
	return out, nil
}

// LookupDomain returns the mirror of one domain.
func (s *Session) LookupDomain(ctx context.Context, id string) (*mirror.VirtualMachine, error) {
	dom, err := s.lookupDomain(id)
	if err != nil {
		return nil, err
	}
	return s.domainMirror(dom)
}

// DomainState returns the power state and persistence flag of a domain.
func (s *Session) DomainState(ctx context.Context, id string) (mirror.PowerState, bool, error) {
	dom, err := s.lookupDomain(id)
	if err != nil {
		return mirror.PowerNoState, false, err
	}
	return s.domainState(dom)
}

// DomainTags reads the tag list of a domain.
func (s *Session) DomainTags(ctx context.Context, id string) ([]string, error) {
	dom, err := s.lookupDomain(id)
	if err != nil {
		return nil, err
	}
	_, persistent, err := s.domainState(dom)
	if err != nil {
		return nil, err
	}
	return metadata.LoadTags(s.l, dom, s.opts.TagsNamespace, persistent)
}

// SetDomainTags replaces the tag list of a domain. The host answers with a
// metadata change event.
func (s *Session) SetDomainTags(ctx context.Context, id string, tags []string) error {
	dom, err := s.lookupDomain(id)
	if err != nil {
		return err
	}
	_, persistent, err := s.domainState(dom)
	if err != nil {
		return err
	}
	return metadata.StoreTags(s.l, dom, s.opts.TagsNamespace, persistent, tags)
}

// ListPools returns a mirror for every storage pool.
func (s *Session) ListPools(ctx context.Context) ([]*mirror.StoragePool, error) {
	return s.storage.ListPools(ctx)
}

// LookupPool returns the mirror of one storage pool.
func (s *Session) LookupPool(ctx context.Context, id string) (*mirror.StoragePool, error) {
	return s.storage.LookupPool(ctx, id)
}

// Disconnected is closed when the host tears down the connection.
func (s *Session) Disconnected() <-chan struct{} {
	return s.l.Disconnected()
}

// Close ends all subscriptions and disconnects. It is safe to call Close
// multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.closer()
	})
	return s.closeErr
}

// OpenScreenshot starts a screenshot transfer of one display.
func (s *Session) OpenScreenshot(ctx context.Context, domainID string, display int) (hypervisor.Stream, error) {
	if display < 0 {
		return nil, fmt.Errorf("invalid display %d", display)
	}
	dom, err := s.lookupDomain(domainID)
	if err != nil {
		return nil, err
	}

	stream := newScreenshotStream()
	stop := context.AfterFunc(ctx, func() { _ = stream.Cancel() })
	stream.start(func(w io.Writer) error {
		defer stop()
		if _, err := s.l.DomainScreenshot(dom, w, uint32(display), 0); err != nil {
			return fmt.Errorf("failed to take screenshot: %w", err)
		}
		return nil
	})

	return stream, nil
}

func (s *Session) lookupDomain(id string) (libvirt.Domain, error) {
	uuid, err := storage.ParseUUID(id)
	if err != nil {
		return libvirt.Domain{}, err
	}
	dom, err := s.l.DomainLookupByUUID(uuid)
	if err != nil {
		return libvirt.Domain{}, fmt.Errorf("domain not found: %w", err)
	}
	return dom, nil
}

func (s *Session) domainState(dom libvirt.Domain) (mirror.PowerState, bool, error) {
	state, _, err := s.l.DomainGetState(dom, 0)
	if err != nil {
		return mirror.PowerNoState, false, fmt.Errorf("failed to get domain state: %w", err)
	}
	persistent, err := s.l.DomainIsPersistent(dom)
	if err != nil {
		return mirror.PowerNoState, false, fmt.Errorf("failed to get domain persistence: %w", err)
	}
	return mirror.PowerState(state), persistent == 1, nil
}

// domainMirror reads state, definition, and tags of a domain.
func (s *Session) domainMirror(dom libvirt.Domain) (*mirror.VirtualMachine, error) {
	state, persistent, err := s.domainState(dom)
	if err != nil {
		return nil, err
	}

	xmlDesc, err := s.l.DomainGetXMLDesc(dom, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get domain XML: %w", err)
	}
	devices, err := ParseDomainXML(xmlDesc)
	if err != nil {
		return nil, err
	}

	tags, err := metadata.LoadTags(s.l, dom, s.opts.TagsNamespace, persistent)
	if err != nil {
		return nil, err
	}

	return &mirror.VirtualMachine{
		ID:          storage.FormatUUID(dom.UUID),
		Name:        dom.Name,
		State:       state,
		Persistent:  persistent,
		Tags:        tags,
		VCPUs:       devices.VCPUs,
		MemoryBytes: devices.MemoryBytes,
		Graphics:    devices.Graphics,
		Disks:       devices.Disks,
	}, nil
}

// Subscribe registers for the given kinds and merges them into one channel.
// Pool lifecycle events are synthesized by polling; pool refresh has no
// source and is accepted without effect.
func (s *Session) Subscribe(ctx context.Context, kinds ...event.Kind) (<-chan event.Event, error) {
	subCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)

	out := make(chan event.Event, eventBuffer)
	var wg sync.WaitGroup

	fail := func(err error) (<-chan event.Event, error) {
		stop()
		cancel()
		return nil, err
	}

	for _, kind := range kinds {
		switch kind {
		case event.KindDomainLifecycle:
			src, err := s.l.LifecycleEvents(subCtx)
			if err != nil {
				return fail(fmt.Errorf("failed to subscribe to lifecycle events: %w", err))
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				for msg := range src {
					if !s.forward(subCtx, out, lifecycleEvent(msg)) {
						return
					}
				}
			}()

		case event.KindDomainMetadataChange:
			src, err := s.l.SubscribeEvents(subCtx, libvirt.DomainEventIDMetadataChange, libvirt.OptDomain{})
			if err != nil {
				return fail(fmt.Errorf("failed to subscribe to metadata events: %w", err))
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				for raw := range src {
					ev, ok := metadataEvent(raw)
					if !ok {
						s.logger.Warn("unexpected metadata callback", zap.String("type", fmt.Sprintf("%T", raw)))
						continue
					}
					if !s.forward(subCtx, out, ev) {
						return
					}
				}
			}()

		case event.KindPoolLifecycle:
			w, err := s.storage.NewWatcher(subCtx)
			if err != nil {
				return fail(fmt.Errorf("failed to watch storage pools: %w", err))
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.pollPools(subCtx, w, out)
			}()

		case event.KindPoolRefresh:
		default:
			return fail(fmt.Errorf("unknown event kind %s", kind))
		}
	}

	go func() {
		wg.Wait()
		stop()
		cancel()
		close(out)
	}()

	return out, nil
}

// forward delivers one event unless the subscription ended.
func (s *Session) forward(ctx context.Context, out chan<- event.Event, ev event.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) pollPools(ctx context.Context, w *storage.Watcher, out chan<- event.Event) {
	interval := s.opts.PoolPollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.l.Disconnected():
			return
		case <-ticker.C:
			events, err := w.Poll(ctx)
			if err != nil {
				s.logger.Warn("storage pool poll failed", zap.Error(err))
				continue
			}
			for _, ev := range events {
				if !s.forward(ctx, out, ev) {
					return
				}
			}
		}
	}
}
