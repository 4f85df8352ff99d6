package hypervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jbweber/virtfleet/api/v1alpha1"
	"github.com/jbweber/virtfleet/internal/cache"
	"github.com/jbweber/virtfleet/internal/config"
	"github.com/jbweber/virtfleet/internal/event"
	"github.com/jbweber/virtfleet/internal/metrics"
	"github.com/jbweber/virtfleet/internal/status"
)

// Options configures supervisors.
type Options struct {
	// ReconnectTimeout is the fixed delay before retrying a failed connect.
	ReconnectTimeout time.Duration
	// KeepAliveInterval and KeepAliveCount drop a session after that many
	// pings in a row failed. Either one <= 0 disables keep-alive.
	KeepAliveInterval time.Duration
	KeepAliveCount    int
	TagsNamespace     string
	Logger            *zap.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Supervisor owns the session, cache, and dispatcher of one hypervisor.
//
// Run drives Disconnected → Connecting → Connected and back, forever, with
// a fixed delay between failed attempts. Only the Run goroutine mutates the
// connection state and the cache.
type Supervisor struct {
	host       config.HostConfig
	dialer     Dialer
	reconnect  time.Duration
	keepAlive  time.Duration
	maxMissed  int
	cache      *cache.Cache
	dispatcher *Dispatcher
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu      sync.RWMutex
	status  v1alpha1.HypervisorStatus
	session Session

	listenersMu sync.RWMutex
	onOpen      []func()
	onClose     []func()
	onChange    []ChangeFunc
}

// NewSupervisor creates an idle supervisor. Nothing is dialed until Run.
func NewSupervisor(host config.HostConfig, dialer Dialer, opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("host_id", host.ID))

	s := &Supervisor{
		host:      host,
		dialer:    dialer,
		reconnect: opts.ReconnectTimeout,
		keepAlive: opts.KeepAliveInterval,
		maxMissed: opts.KeepAliveCount,
		cache:     cache.New(host.ID),
		logger:    logger,
		metrics:   opts.Metrics,
		status:    v1alpha1.HypervisorStatus{Phase: v1alpha1.PhaseDisconnected},
	}
	s.dispatcher = NewDispatcher(s.cache, opts.TagsNamespace, s.emitChange, logger)
	if s.metrics != nil {
		s.metrics.HostConnected.WithLabelValues(host.ID).Set(0)
	}
	return s
}

// ID returns the configured host id.
func (s *Supervisor) ID() string { return s.host.ID }

// Name returns the display name of the host.
func (s *Supervisor) Name() string { return s.host.DisplayName() }

// Host returns the host configuration.
func (s *Supervisor) Host() config.HostConfig { return s.host }

// DisplayEndpoint returns the display proxy base URL.
func (s *Supervisor) DisplayEndpoint() string { return s.host.DisplayEndpoint }

// Cache returns the host's entity cache. Callers must treat it as read-only.
func (s *Supervisor) Cache() *cache.Cache { return s.cache }

// Connected reports whether the session is up, subscribed, and loaded.
func (s *Supervisor) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return status.IsConnected(s.status.Phase)
}

// Phase returns the current connection phase.
func (s *Supervisor) Phase() v1alpha1.ConnectionPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Phase
}

// Conditions returns a copy of the status conditions.
func (s *Supervisor) Conditions() []v1alpha1.Condition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return v1alpha1.DeepCopyConditions(s.status.Conditions)
}

// Info returns the host attributes read on the last successful connect.
func (s *Supervisor) Info() HostInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return HostInfo{
		Hostname:          s.status.Hostname,
		LibVersion:        s.status.LibVersion,
		HypervisorVersion: s.status.HypervisorVersion,
		FreeMemoryBytes:   s.status.FreeMemoryBytes,
		Node:              *s.status.Node.DeepCopy(),
	}
}

// Status returns the public view of the host.
func (s *Supervisor) Status() *v1alpha1.Hypervisor {
	h := v1alpha1.NewHypervisor(s.host.ID, s.host.DisplayName(), s.host.URI, s.host.DisplayEndpoint)

	s.mu.RLock()
	h.Status = *s.status.DeepCopy()
	s.mu.RUnlock()

	h.Status.VirtualMachines, h.Status.StoragePools = s.cache.Len()
	return h
}

// Session returns the live session, or ErrNotConnected.
func (s *Supervisor) Session() (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !status.IsConnected(s.status.Phase) || s.session == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, s.host.ID)
	}
	return s.session, nil
}

// OnOpen registers fn to run after every successful connect.
func (s *Supervisor) OnOpen(fn func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.onOpen = append(s.onOpen, fn)
}

// OnClose registers fn to run after the session is lost, before the cache
// is cleared.
func (s *Supervisor) OnClose(fn func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// OnChange registers fn for every committed cache transition.
func (s *Supervisor) OnChange(fn ChangeFunc) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Run supervises the host until ctx is done.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		sess, events, err := s.tryConnect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Info("connect failed, retry scheduled",
				zap.Error(err), zap.Duration("retry_in", s.reconnect))

			timer := time.NewTimer(s.reconnect)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		reason := s.serve(ctx, sess, events)
		s.closed(sess, reason)

		if ctx.Err() != nil {
			return
		}
		s.logger.Info("session closed, reconnecting", zap.String("reason", reason))
	}
}

// tryConnect dials, reads host info, subscribes, and reloads the cache.
// The session is Connected only when all of that succeeded.
func (s *Supervisor) tryConnect(ctx context.Context) (Session, <-chan event.Event, error) {
	s.mu.Lock()
	err := status.TransitionToConnecting(&s.status)
	s.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("connecting", zap.String("uri", s.host.URI))

	var sess Session
	fail := func(reason string, err error) (Session, <-chan event.Event, error) {
		if sess != nil {
			_ = sess.Close()
		}
		s.mu.Lock()
		status.TransitionToDisconnected(&s.status, reason, err.Error())
		s.mu.Unlock()
		s.countAttempt(metrics.ResultFailure)
		return nil, nil, err
	}

	sess, err = s.dialer.Dial(ctx, s.host)
	if err != nil {
		return fail("DialFailed", fmt.Errorf("failed to dial %s: %w", s.host.URI, err))
	}

	info, err := sess.Info(ctx)
	if err != nil {
		return fail("InfoFailed", fmt.Errorf("failed to read host info: %w", err))
	}

	// Subscribe before loading so nothing between load and subscribe is lost
	events, err := sess.Subscribe(ctx, event.AllKinds...)
	if err != nil {
		s.mu.Lock()
		status.MarkSubscribeFailed(&s.status, err)
		s.mu.Unlock()
		return fail("SubscribeFailed", fmt.Errorf("failed to subscribe: %w", err))
	}
	s.mu.Lock()
	status.MarkSubscribed(&s.status)
	s.mu.Unlock()

	vms, err := sess.ListDomains(ctx)
	if err == nil {
		pools, perr := sess.ListPools(ctx)
		if perr == nil {
			s.cache.Replace(vms, pools)
		}
		err = perr
	}
	if err != nil {
		s.mu.Lock()
		status.MarkSyncFailed(&s.status, err)
		s.mu.Unlock()
		return fail("LoadFailed", fmt.Errorf("failed to load cache: %w", err))
	}

	s.mu.Lock()
	status.MarkSynchronized(&s.status)
	s.status.Hostname = info.Hostname
	s.status.LibVersion = info.LibVersion
	s.status.HypervisorVersion = info.HypervisorVersion
	s.status.FreeMemoryBytes = info.FreeMemoryBytes
	s.status.Node = info.Node
	s.session = sess
	err = status.TransitionToConnected(&s.status)
	s.mu.Unlock()
	if err != nil {
		return fail("StateError", err)
	}

	s.countAttempt(metrics.ResultSuccess)
	if s.metrics != nil {
		s.metrics.HostConnected.WithLabelValues(s.host.ID).Set(1)
	}
	nVMs, nPools := s.cache.Len()
	s.logger.Info("connected",
		zap.String("hostname", info.Hostname),
		zap.String("lib_version", info.LibVersion),
		zap.Int("virtual_machines", nVMs),
		zap.Int("storage_pools", nPools))

	for _, fn := range s.openListeners() {
		s.safeCall("on_open", fn)
	}

	return sess, events, nil
}

// serve dispatches events until the session ends and returns why it ended.
func (s *Supervisor) serve(ctx context.Context, sess Session, events <-chan event.Event) string {
	var tick <-chan time.Time
	if s.keepAlive > 0 && s.maxMissed > 0 {
		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	// At most one ping is outstanding. Every tick that finds it still
	// pending counts as a miss; its late error then does not count again.
	pings := make(chan error, 1)
	pending, late := false, false
	missed := 0
	miss := func(err error) bool {
		missed++
		s.logger.Warn("keep-alive missed", zap.Int("missed", missed), zap.Error(err))
		return missed >= s.maxMissed
	}

	for {
		select {
		case <-ctx.Done():
			return "shutdown"
		case <-sess.Disconnected():
			return "connection closed by host"
		case ev, ok := <-events:
			if !ok {
				return "event stream closed"
			}
			s.handle(ctx, sess, ev)
		case <-tick:
			if pending {
				late = true
				if miss(context.DeadlineExceeded) {
					return "keep-alive timed out"
				}
				continue
			}
			pending = true
			go func() {
				pctx, cancel := context.WithTimeout(ctx, s.keepAlive)
				defer cancel()
				pings <- sess.Ping(pctx)
			}()
		case err := <-pings:
			wasLate := late
			pending, late = false, false
			if err == nil {
				missed = 0
				continue
			}
			if !wasLate && miss(err) {
				return "keep-alive timed out"
			}
		}
	}
}

func (s *Supervisor) handle(ctx context.Context, sess Session, ev event.Event) {
	kind := "unknown"
	if ev != nil {
		kind = ev.Kind().String()
	}
	if s.metrics != nil {
		s.metrics.Events.WithLabelValues(s.host.ID, kind).Inc()
	}

	if err := s.dispatcher.Dispatch(ctx, sess, ev); err != nil {
		if s.metrics != nil {
			s.metrics.EventErrors.WithLabelValues(s.host.ID).Inc()
		}
		s.logger.Error("event dropped", zap.String("kind", kind), zap.Error(err))
	}
}

// closed tears down a lost session: mark Disconnected, notify, clear cache.
func (s *Supervisor) closed(sess Session, reason string) {
	_ = sess.Close()

	s.mu.Lock()
	s.session = nil
	status.TransitionToDisconnected(&s.status, "SessionClosed", reason)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.HostConnected.WithLabelValues(s.host.ID).Set(0)
	}

	for _, fn := range s.closeListeners() {
		s.safeCall("on_close", fn)
	}
	s.cache.Clear()
}

// emitChange fans a committed change out to the change listeners.
func (s *Supervisor) emitChange(c Change) {
	s.listenersMu.RLock()
	listeners := append([]ChangeFunc(nil), s.onChange...)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		s.safeCall("on_change", func() { fn(c) })
	}
}

func (s *Supervisor) openListeners() []func() {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	return append([]func(){}, s.onOpen...)
}

func (s *Supervisor) closeListeners() []func() {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	return append([]func(){}, s.onClose...)
}

// safeCall isolates a listener panic from the event loop.
func (s *Supervisor) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("listener panicked", zap.String("listener", name), zap.Any("panic", r))
		}
	}()
	fn()
}

func (s *Supervisor) countAttempt(result string) {
	if s.metrics != nil {
		s.metrics.ConnectAttempts.WithLabelValues(s.host.ID, result).Inc()
	}
}
