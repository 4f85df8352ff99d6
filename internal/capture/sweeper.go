package capture

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jbweber/virtfleet/internal/mirror"
)

// Inventory lists the VMs a sweep considers.
type Inventory interface {
	AllVMs() []*mirror.VirtualMachine
	IsConnected(hostID string) bool
}

// Sweeper arms capture for every running VM of a connected host. It never
// disarms jobs: those end on an explicit stop or when the VM is destroyed.
type Sweeper struct {
	inventory Inventory
	scheduler *Scheduler
	schedule  string
	logger    *zap.Logger
}

// NewSweeper creates a sweeper running on a cron schedule such as
// "@every 1m" or "*/5 * * * *".
func NewSweeper(inv Inventory, sched *Scheduler, schedule string, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		inventory: inv,
		scheduler: sched,
		schedule:  schedule,
		logger:    logger,
	}
}

// Run sweeps once, then on every schedule tick until ctx is done.
func (w *Sweeper) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.schedule, w.Sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", w.schedule, err)
	}

	w.Sweep()
	c.Start()
	w.logger.Info("capture sweeper started", zap.String("schedule", w.schedule))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Sweep starts display 0 of every running VM on a connected host. Keys that
// are already armed are left alone.
func (w *Sweeper) Sweep() {
	started := 0
	for _, vm := range w.inventory.AllVMs() {
		if !vm.Running() || !w.inventory.IsConnected(vm.HostID) {
			continue
		}
		if w.scheduler.Start(vm.ID, 0) {
			started++
		}
	}

	if started > 0 {
		w.logger.Info("capture sweep",
			zap.Int("started", started),
			zap.Int("active", len(w.scheduler.Keys())))
	}
}
