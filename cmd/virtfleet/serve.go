package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbweber/virtfleet/internal/broadcast"
	"github.com/jbweber/virtfleet/internal/capture"
	"github.com/jbweber/virtfleet/internal/config"
	"github.com/jbweber/virtfleet/internal/hypervisor"
	"github.com/jbweber/virtfleet/internal/libvirt"
	"github.com/jbweber/virtfleet/internal/logging"
	"github.com/jbweber/virtfleet/internal/metrics"
	"github.com/jbweber/virtfleet/internal/server"
)

const shutdownTimeout = 10 * time.Second

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fleet mirror with its HTTP API",
	Long: `Connect to every configured host, keep the mirror in sync, and serve it
over HTTP together with the real-time event stream, capture control and
Prometheus metrics.

Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if listenAddr != "" {
			cfg.HTTP.Listen = listenAddr
		}
		return runDaemon(cmd.Context(), cfg, logger, true)
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run the fleet mirror and screenshot captures without HTTP",
	Long: `Connect to every configured host and capture screenshots of running VMs
on the configured sweep schedule. Changes are still published to NATS when
configured.

Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if cfg.Capture.SweepSchedule == "" {
			return errors.New("capture.sweep_schedule must be set to run captures without the HTTP API")
		}
		cfg.Capture.Enabled = true
		return runDaemon(cmd.Context(), cfg, logger, false)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Override the configured HTTP listen address")
}

// runDaemon wires the fleet, its listeners and optionally the HTTP server,
// and blocks until SIGINT or SIGTERM.
func runDaemon(parent context.Context, cfg *config.Config, logger *zap.Logger, withHTTP bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	dialer := libvirt.NewDialer(cfg, logger)
	fleet := hypervisor.NewFleet(cfg, dialer, logger, m)

	var publishers []broadcast.Publisher
	var hub *broadcast.Hub
	if withHTTP {
		hub = broadcast.NewHub(cfg.Broadcast.Stream, cfg.Broadcast.QueueSize, logging.ForPackage(logger, "broadcast"), m)
		defer func() { _ = hub.Close() }()
		publishers = append(publishers, hub)
	}
	if cfg.Broadcast.NATS.URL != "" {
		nc, err := broadcast.NewNATSPublisher(cfg.Broadcast.NATS.URL, cfg.Broadcast.NATS.SubjectPrefix, logging.ForPackage(logger, "broadcast"))
		if err != nil {
			return err
		}
		defer func() { _ = nc.Close() }()
		publishers = append(publishers, nc)
	}
	if len(publishers) > 0 {
		b := broadcast.New(cfg.Broadcast.Stream, logging.ForPackage(logger, "broadcast"), m, publishers...)
		fleet.OnChange(b.OnChange)
	}

	var wg sync.WaitGroup
	var sched *capture.Scheduler
	if cfg.Capture.Enabled {
		sched = capture.NewScheduler(fleet, capture.Options{
			Interval:  cfg.Capture.Interval,
			OutputDir: cfg.Capture.OutputDir,
			TempDir:   cfg.Capture.TempDir,
			ChunkSize: cfg.Capture.ChunkSize,
			Logger:    logging.ForPackage(logger, "capture"),
			Metrics:   m,
		})
		defer sched.Close()
		fleet.OnChange(sched.OnChange)

		if cfg.Capture.SweepSchedule != "" {
			sweeper := capture.NewSweeper(fleet, sched, cfg.Capture.SweepSchedule, logging.ForPackage(logger, "capture"))
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := sweeper.Run(ctx); err != nil {
					logger.Error("capture sweeper stopped", zap.Error(err))
					stop()
				}
			}()
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		fleet.Run(ctx)
	}()

	logger.Info("virtfleet started",
		zap.String("version", version),
		zap.Int("hosts", len(cfg.Hosts)),
		zap.Bool("http", withHTTP),
		zap.Bool("capture", cfg.Capture.Enabled),
	)

	var serveErr error
	if withHTTP {
		serveErr = serveHTTP(ctx, cfg, logger, fleet, sched, hub, reg)
		stop()
	} else {
		<-ctx.Done()
	}

	wg.Wait()
	logger.Info("virtfleet stopped")
	return serveErr
}

func serveHTTP(ctx context.Context, cfg *config.Config, logger *zap.Logger, fleet *hypervisor.Fleet, sched *capture.Scheduler, hub *broadcast.Hub, reg *prometheus.Registry) error {
	opts := server.Options{
		Fleet:    fleet,
		Events:   hub,
		Gatherer: reg,
		Logger:   logging.ForPackage(logger, "server"),
	}
	if sched != nil {
		opts.Captures = sched
	}
	if cfg.HTTP.ServeStatic {
		opts.StaticDir = cfg.Capture.OutputDir
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           server.New(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
