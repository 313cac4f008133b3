package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/repository"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	generations repository.SceneGenerationRepository
	storage     repository.AssetRepository
	logger      *zap.Logger
}

func NewHealthHandler(generations repository.SceneGenerationRepository, storage repository.AssetRepository, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{generations: generations, storage: storage, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Check handles GET /health: a DB ping plus a storage reachability probe.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)

	if err := h.generations.HealthCheck(ctx); err != nil {
		h.logger.Error("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
	} else {
		checks["database"] = "ok"
	}

	if err := h.storage.HealthCheck(ctx); err != nil {
		h.logger.Error("storage health check failed", zap.Error(err))
		checks["storage"] = "unhealthy"
	} else {
		checks["storage"] = "ok"
	}

	status := "healthy"
	statusCode := http.StatusOK
	for _, checkStatus := range checks {
		if checkStatus != "ok" {
			status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	})
}
