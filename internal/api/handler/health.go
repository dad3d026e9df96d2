package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AgentHealthChecker reports whether the external agent API is reachable.
type AgentHealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db    *gorm.DB
	agent AgentHealthChecker
}

// NewHealthHandler creates a new health handler. agent may be nil.
func NewHealthHandler(db *gorm.DB, agent AgentHealthChecker) *HealthHandler {
	return &HealthHandler{db: db, agent: agent}
}

// Health returns the health status of the service and its dependencies.
func (h *HealthHandler) Health(c *gin.Context) {
	components := gin.H{}
	healthy := true

	if h.db != nil {
		dbStatus := "ok"
		if sqlDB, err := h.db.DB(); err != nil {
			dbStatus = err.Error()
			healthy = false
		} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			dbStatus = err.Error()
			healthy = false
		}
		components["database"] = dbStatus
	}

	if h.agent != nil {
		agentStatus := "ok"
		if err := h.agent.Health(c.Request.Context()); err != nil {
			// A degraded agent does not fail the service health check; the
			// pipeline retries on its own.
			agentStatus = err.Error()
		}
		components["agent"] = agentStatus
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"components": components,
	})
}
