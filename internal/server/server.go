// Package server exposes the fleet read model, tag updates, display URLs,
// capture control, the real-time event stream, and metrics over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jbweber/virtfleet/api/v1alpha1"
	"github.com/jbweber/virtfleet/internal/hypervisor"
	"github.com/jbweber/virtfleet/internal/mirror"
)

// Fleet is the read and write surface of the hypervisor fleet.
type Fleet interface {
	Hypervisors() []*v1alpha1.Hypervisor
	Hypervisor(hostID string) (*v1alpha1.Hypervisor, error)
	AllVMs() []*mirror.VirtualMachine
	ListVMs(hostID string) ([]*mirror.VirtualMachine, error)
	FindVM(id string) *mirror.VirtualMachine
	AllPools() []*mirror.StoragePool
	FindPool(id string) (*mirror.StoragePool, error)
	FindVolume(id string) (*mirror.StorageVolume, *mirror.StoragePool, error)
	SetTags(ctx context.Context, vmID string, tags []string) error
	SetState(ctx context.Context, vmID string, action hypervisor.PowerAction) error
	DisplayURL(vmID string) (string, error)
}

// Captures controls capture jobs.
type Captures interface {
	Start(vmID string, display int) bool
	Stop(vmID string, display int) bool
	Active(vmID string, display int) bool
}

// Options wires the router. Captures, Events and Gatherer may be nil, which
// leaves their routes unregistered.
type Options struct {
	Fleet    Fleet
	Captures Captures
	// Events serves the real-time change stream, e.g. a broadcast.Hub.
	Events   http.Handler
	Gatherer prometheus.Gatherer
	// StaticDir is served under /screenshots when set.
	StaticDir string
	Logger    *zap.Logger
}

type server struct {
	fleet    Fleet
	captures Captures
	logger   *zap.Logger
}

// New builds the router.
func New(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &server{fleet: opts.Fleet, captures: opts.Captures, logger: opts.Logger}

	router := gin.New()
	router.Use(requestLogger(opts.Logger), gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/hypervisors", s.listHypervisors)
		api.GET("/hypervisors/:id", s.getHypervisor)

		api.GET("/virtual-machines", s.listVMs)
		api.GET("/virtual-machines/:id", s.getVM)
		api.PATCH("/virtual-machines/:id", s.setState)
		api.PUT("/virtual-machines/:id/tags", s.setTags)
		api.GET("/virtual-machines/:id/display", s.getDisplay)

		api.GET("/storage-pools", s.listPools)
		api.GET("/storage-pools/:id", s.getPool)

		api.GET("/storage-volumes", s.listVolumes)
		api.GET("/storage-volumes/:id", s.getVolume)

		if opts.Captures != nil {
			api.GET("/virtual-machines/:id/captures/:display", s.getCapture)
			api.POST("/virtual-machines/:id/captures/:display", s.startCapture)
			api.DELETE("/virtual-machines/:id/captures/:display", s.stopCapture)
		}
	}

	if opts.Events != nil {
		router.GET("/ws_events", gin.WrapH(opts.Events))
	}
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	if opts.StaticDir != "" {
		router.Static("/screenshots", opts.StaticDir)
	}

	return router
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request failed", fields...)
			return
		}
		logger.Debug("request", fields...)
	}
}

// abortWithError maps fleet errors to status codes.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, hypervisor.ErrUnknownHost),
		errors.Is(err, hypervisor.ErrVMNotFound),
		errors.Is(err, hypervisor.ErrPoolNotFound),
		errors.Is(err, hypervisor.ErrVolumeNotFound),
		errors.Is(err, hypervisor.ErrNoDisplay):
		status = http.StatusNotFound
	case errors.Is(err, hypervisor.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, hypervisor.ErrNotConnected):
		status = http.StatusServiceUnavailable
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
