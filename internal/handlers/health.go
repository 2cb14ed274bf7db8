package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/amcq-expeed/opnxt-core/internal/blob"
	"github.com/amcq-expeed/opnxt-core/internal/config"
	"github.com/amcq-expeed/opnxt-core/internal/services"
)

// HealthHandler handles the liveness/readiness route
type HealthHandler struct {
	Cfg   *config.Config
	DB    *gorm.DB
	Blobs blob.Store
}

// GetHealth handles GET /health
// @Summary Service health
// @Description Check database, blob store and generator reachability
// @Tags Health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	result := services.HealthCheck(h.Cfg, h.DB, h.Blobs)
	status := fiber.StatusOK
	if result.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}
