// Package api serves the admin HTTP surface: health, metrics and manual
// sweep triggers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobmate/careerwatch-service/internal/lock"
	"jobmate/careerwatch-service/internal/logger"
	"jobmate/careerwatch-service/internal/model"
	"jobmate/careerwatch-service/internal/scheduler"
	"jobmate/careerwatch-service/internal/store"
)

const serviceName = "careerwatch-service"

// RunHistory reads the sweep history.
type RunHistory interface {
	LastRun(ctx context.Context) (*model.RunRecord, error)
}

// Handler holds the admin endpoints.
type Handler struct {
	runner   scheduler.Runner
	runs     RunHistory
	gatherer prometheus.Gatherer
	log      logger.Logger
	version  string
	started  time.Time

	// base outlives requests: triggered sweeps keep running after the
	// response is written.
	base     context.Context
	running  atomic.Bool
	inflight sync.WaitGroup
}

// NewHandler constructs a Handler. base bounds sweeps triggered over HTTP.
func NewHandler(base context.Context, runner scheduler.Runner, runs RunHistory, gatherer prometheus.Gatherer, version string, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		runner:   runner,
		runs:     runs,
		gatherer: gatherer,
		log:      logger.Component(log, "api"),
		version:  version,
		started:  time.Now(),
		base:     base,
	}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	r.POST("/sweeps", h.triggerSweep)
	r.GET("/sweeps/last", h.lastSweep)
	return r
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  serviceName,
		"version":  h.version,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"sweeping": h.running.Load(),
	})
}

// triggerSweep starts a sweep in the background and answers 202. With
// ?wait=true it blocks and returns the summary instead.
func (h *Handler) triggerSweep(c *gin.Context) {
	wait, _ := strconv.ParseBool(c.Query("wait"))
	if !h.running.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "a sweep triggered over HTTP is already running"})
		return
	}

	if !wait {
		h.inflight.Add(1)
		go func() {
			defer h.inflight.Done()
			defer h.running.Store(false)
			if _, err := h.runner.RunOnce(h.base); err != nil {
				h.log.Warn("triggered sweep did not run", logger.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "started"})
		return
	}

	defer h.running.Store(false)
	summary, err := h.runner.RunOnce(c.Request.Context())
	switch {
	case errors.Is(err, lock.ErrHeld):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, newSummaryResponse(summary))
	}
}

// Wait blocks until every sweep triggered over HTTP has returned. Call it
// after the server stopped accepting requests and before closing the store.
func (h *Handler) Wait() {
	h.inflight.Wait()
}

func (h *Handler) lastSweep(c *gin.Context) {
	run, err := h.runs.LastRun(c.Request.Context())
	switch {
	case errors.Is(err, store.ErrNoRuns):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read sweep history"})
	default:
		c.JSON(http.StatusOK, newRunResponse(run))
	}
}
