package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/hr-optimizer/internal/pipeline"
	"github.com/jstittsworth/hr-optimizer/internal/services"
	"github.com/jstittsworth/hr-optimizer/pkg/database"
)

type HealthHandler struct {
	db        *database.DB
	cache     *services.CacheService
	runner    *pipeline.Runner
	startedAt time.Time
}

func NewHealthHandler(db *database.DB, cache *services.CacheService, runner *pipeline.Runner) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cache,
		runner:    runner,
		startedAt: time.Now(),
	}
}

// GetHealth returns 200 whenever the process is serving requests.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "hr-optimizer",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      time.Since(h.startedAt).Round(time.Second).String(),
		"active_runs": h.runner.ActiveRuns(),
	})
}

// GetReady returns 200 only when the database answers. A cache outage is
// reported but does not fail readiness.
func (h *HealthHandler) GetReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if err := h.cache.Ping(ctx); err != nil {
		checks["cache"] = err.Error()
	} else {
		checks["cache"] = "ok"
	}
	checks["cache_backend"] = h.cache.Backend()

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}

	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
	})
}
