// context.go
//
// Phase-gated SDLC document generation and versioning service
// Copyright (c) 2026 Expeed Software (https://www.expeed.com)
//
// This file is part of opnxt-core.
// opnxt-core is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// opnxt-core is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with opnxt-core.
// If not, see <https://www.gnu.org/licenses/>.

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/amcq-expeed/opnxt-core/internal/services"
	"github.com/amcq-expeed/opnxt-core/internal/types"
	"github.com/amcq-expeed/opnxt-core/internal/utils"
)

// ContextHandler handles project context and impact analysis routes
type ContextHandler struct {
	DB   *gorm.DB
	Orch *services.Orchestrator
}

// GetContext handles GET /api/projects/:id/context
// @Summary Get project context
// @Description Get the project's elicitation context document
// @Tags Context
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /projects/{id}/context [get]
func (h *ContextHandler) GetContext(c *fiber.Ctx) error {
	record, err := services.GetContext(h.DB, c.Params("id"))
	if err != nil {
		return serviceErrorResponse(c, err, "getContext")
	}
	data, err := services.ContextData(record)
	if err != nil {
		return serviceErrorResponse(c, err, "getContext")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"project_id": record.ProjectID,
		"data":       data,
		"updated_at": record.UpdatedAt,
	})
}

// PutContext handles PUT /api/projects/:id/context
// @Summary Replace project context
// @Description Replace the whole context document; last writer wins
// @Tags Context
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param body body object true "Context data"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /projects/{id}/context [put]
func (h *ContextHandler) PutContext(c *fiber.Ctx) error {
	var data map[string]interface{}
	if err := c.BodyParser(&data); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "context.validation.input")
	}

	record, err := services.PutContext(h.DB, c.Params("id"), data)
	if err != nil {
		return serviceErrorResponse(c, err, "putContext")
	}
	return utils.MutationSuccessResponse(c, fiber.Map{"updated_at": record.UpdatedAt})
}

// ComputeImpacts handles POST /api/projects/:id/impacts
// @Summary Compute impact analysis
// @Description Rank artifacts and modules affected by changed requirement ids
// @Tags Context
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param body body object true "Changed requirement ids"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /projects/{id}/impacts [post]
func (h *ContextHandler) ComputeImpacts(c *fiber.Ctx) error {
	var body struct {
		Changed types.FlexList[string] `json:"changed"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "impact.validation.input")
	}

	items, err := h.Orch.ComputeImpacts(c.Context(), c.Params("id"), body.Changed.Slice())
	if err != nil {
		return serviceErrorResponse(c, err, "computeImpacts")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"project_id": c.Params("id"),
		"impacts":    items,
	})
}
