package capture

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/jbweber/virtfleet/internal/hypervisor"
	"github.com/jbweber/virtfleet/internal/metrics"
	"github.com/jbweber/virtfleet/internal/mirror"
)

var (
	// ErrVMNotFound is returned when the VM of a job is not cached.
	ErrVMNotFound = errors.New("virtual machine not found")
	// ErrStreamFailed wraps stream open and transfer failures.
	ErrStreamFailed = errors.New("screenshot stream failed")
	// ErrCanceled is returned for attempts cut short by Stop or Close.
	ErrCanceled = errors.New("capture canceled")
)

// DefaultChunkSize is the read size used when Options.ChunkSize is unset.
const DefaultChunkSize = 64 * 1024

// Source is the part of the fleet the scheduler needs.
type Source interface {
	FindVM(id string) *mirror.VirtualMachine
	OpenScreenshot(ctx context.Context, vmID string, display int) (hypervisor.Stream, error)
}

// Options configures a Scheduler.
type Options struct {
	Interval  time.Duration
	OutputDir string
	// TempDir holds in-flight frames; empty means the fs default.
	TempDir   string
	ChunkSize int
	// Fs defaults to the OS file system.
	Fs        afero.Fs
	Converter Converter
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Scheduler owns the capture job registry.
//
// The registry is guarded by mu; no I/O happens while it is held. Jobs and
// their attempts run on their own goroutines.
type Scheduler struct {
	source    Source
	interval  time.Duration
	outputDir string
	tempDir   string
	chunkSize int
	fs        afero.Fs
	converter Converter
	logger    *zap.Logger
	metrics   *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   map[Key]*job
	closed bool
}

// job is one armed key and its in-flight attempts.
type job struct {
	key    Key
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inflight map[*attempt]struct{}
}

// attempt is one stream transfer. Its stream is set once opened.
type attempt struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	stream hypervisor.Stream
}

// abort cancels the attempt and its stream. Safe to call any number of
// times, also after the attempt finished.
func (a *attempt) abort() {
	a.cancel()
	a.mu.Lock()
	st := a.stream
	a.mu.Unlock()
	if st != nil {
		_ = st.Cancel()
	}
}

// NewScheduler creates an empty scheduler.
func NewScheduler(source Source, opts Options) *Scheduler {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Converter == nil {
		opts.Converter = PNGConverter{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		source:    source,
		interval:  opts.Interval,
		outputDir: opts.OutputDir,
		tempDir:   opts.TempDir,
		chunkSize: opts.ChunkSize,
		fs:        opts.Fs,
		converter: opts.Converter,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[Key]*job),
	}
}

// Start arms a job for the VM display. It returns false if the key is
// already running or the scheduler is closed.
func (s *Scheduler) Start(vmID string, display int) bool {
	key := Key{VMID: vmID, Display: display}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if _, exists := s.jobs[key]; exists {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(s.ctx)
	j := &job{key: key, ctx: ctx, cancel: cancel, inflight: make(map[*attempt]struct{})}
	s.jobs[key] = j
	s.wg.Add(1)
	// Counted before the job is visible to Stop, which decrements it.
	if s.metrics != nil {
		s.metrics.CaptureJobs.Inc()
	}
	s.mu.Unlock()
	s.logger.Info("capture started", zap.String("vm_id", vmID), zap.Int("display", display))

	go s.run(j)
	return true
}

// Stop disarms the job and cancels its in-flight attempts. It returns
// false if the key is not running.
func (s *Scheduler) Stop(vmID string, display int) bool {
	key := Key{VMID: vmID, Display: display}

	s.mu.Lock()
	j, ok := s.jobs[key]
	if ok {
		delete(s.jobs, key)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.disarm(j)
	s.logger.Info("capture stopped", zap.String("vm_id", vmID), zap.Int("display", display))
	return true
}

// StopVM stops every display of the VM and returns how many were running.
func (s *Scheduler) StopVM(vmID string) int {
	var stopped []*job

	s.mu.Lock()
	for key, j := range s.jobs {
		if key.VMID == vmID {
			delete(s.jobs, key)
			stopped = append(stopped, j)
		}
	}
	s.mu.Unlock()

	for _, j := range stopped {
		s.disarm(j)
	}
	if len(stopped) > 0 {
		s.logger.Info("capture stopped", zap.String("vm_id", vmID), zap.Int("displays", len(stopped)))
	}
	return len(stopped)
}

// Active reports whether the key is armed.
func (s *Scheduler) Active(vmID string, display int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[Key{VMID: vmID, Display: display}]
	return ok
}

// Keys returns the armed keys in a stable order.
func (s *Scheduler) Keys() []Key {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.jobs))
	for k := range s.jobs {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].VMID != keys[j].VMID {
			return keys[i].VMID < keys[j].VMID
		}
		return keys[i].Display < keys[j].Display
	})
	return keys
}

// OnChange stops the jobs of destroyed VMs. It satisfies hypervisor.ChangeFunc.
func (s *Scheduler) OnChange(c hypervisor.Change) {
	if c.Action == hypervisor.ActionDestroy && c.Kind == hypervisor.KindVirtualMachine {
		s.StopVM(c.EntityID())
	}
}

// Close stops every job and waits for their goroutines to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	jobs := s.jobs
	s.jobs = make(map[Key]*job)
	s.mu.Unlock()

	for _, j := range jobs {
		s.disarm(j)
	}
	s.cancel()
	s.wg.Wait()
}

// disarm cancels the job timer and every in-flight attempt.
func (s *Scheduler) disarm(j *job) {
	j.cancel()

	j.mu.Lock()
	inflight := make([]*attempt, 0, len(j.inflight))
	for a := range j.inflight {
		inflight = append(inflight, a)
	}
	j.mu.Unlock()

	for _, a := range inflight {
		a.abort()
	}
	if s.metrics != nil {
		s.metrics.CaptureJobs.Dec()
	}
}

// run fires an attempt now and then on every interval.
func (s *Scheduler) run(j *job) {
	defer s.wg.Done()

	s.fire(j)
	if s.interval <= 0 {
		<-j.ctx.Done()
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			s.fire(j)
		}
	}
}

// fire starts one attempt on its own goroutine so a slow transfer never
// delays the next tick.
func (s *Scheduler) fire(j *job) {
	ctx, cancel := context.WithCancel(j.ctx)
	a := &attempt{cancel: cancel}

	j.mu.Lock()
	if j.ctx.Err() != nil {
		j.mu.Unlock()
		cancel()
		return
	}
	j.inflight[a] = struct{}{}
	j.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			j.mu.Lock()
			delete(j.inflight, a)
			j.mu.Unlock()
			cancel()
		}()

		start := time.Now()
		err := s.capture(ctx, j.key, a)
		s.record(j.key, err, time.Since(start))
	}()
}

func (s *Scheduler) record(key Key, err error, elapsed time.Duration) {
	log := s.logger.With(zap.String("vm_id", key.VMID), zap.Int("display", key.Display))
	result := metricsResult(err)
	switch result {
	case metrics.ResultSuccess:
		log.Debug("capture saved", zap.Duration("elapsed", elapsed))
	case metrics.ResultCanceled:
		log.Debug("capture canceled")
	default:
		log.Warn("capture failed", zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.CaptureAttempts.WithLabelValues(result).Inc()
		if err == nil {
			s.metrics.CaptureDuration.Observe(elapsed.Seconds())
		}
	}
}

func metricsResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrCanceled):
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailure
	}
}
