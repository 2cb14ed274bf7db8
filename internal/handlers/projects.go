// projects.go
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

	"github.com/amcq-expeed/opnxt-core/internal/phases"
	"github.com/amcq-expeed/opnxt-core/internal/services"
	"github.com/amcq-expeed/opnxt-core/internal/utils"
)

// ProjectHandler handles project lifecycle routes
type ProjectHandler struct {
	DB   *gorm.DB
	Gate phases.GateConfig
}

// CreateProject handles POST /api/projects
// @Summary Create a project
// @Description Create a new project in the initial phase
// @Tags Projects
// @Accept json
// @Produce json
// @Param body body object true "Project name and optional metadata"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /projects [post]
func (h *ProjectHandler) CreateProject(c *fiber.Ctx) error {
	var body struct {
		Name     string                 `json:"name"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "project.validation.input")
	}
	if body.Name == "" {
		return utils.ErrorResponse(c, "Project name is required", fiber.StatusBadRequest, "project.validation.input")
	}

	project, err := services.CreateProject(h.DB, body.Name, body.Metadata)
	if err != nil {
		return serviceErrorResponse(c, err, "createProject")
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

// GetProject handles GET /api/projects/:id
// @Summary Get a project
// @Description Get a project with its current phase
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetProject(c *fiber.Ctx) error {
	project, err := services.GetProject(h.DB, c.Params("id"))
	if err != nil {
		return serviceErrorResponse(c, err, "getProject")
	}
	return c.Status(fiber.StatusOK).JSON(project)
}

// DeleteProject handles DELETE /api/projects/:id
// @Summary Delete a project
// @Description Delete a project and all owned documents, versions, context and history
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *fiber.Ctx) error {
	if err := services.DeleteProject(h.DB, c.Params("id")); err != nil {
		return serviceErrorResponse(c, err, "deleteProject")
	}
	return utils.MutationSuccessResponse(c, nil)
}

// AdvanceProject handles PUT /api/projects/:id/advance
// @Summary Advance a project to its next phase
// @Description Advance the project if the phase gate passes; force=true bypasses the gate
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param body body object false "Actor and force flag"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Router /projects/{id}/advance [put]
func (h *ProjectHandler) AdvanceProject(c *fiber.Ctx) error {
	var body struct {
		Actor string `json:"actor"`
		Force bool   `json:"force"`
	}
	// An empty body means an unforced, anonymous advance.
	_ = c.BodyParser(&body)

	project, err := services.AdvanceProject(h.DB, c.Params("id"), body.Actor, body.Force, h.Gate)
	if err != nil {
		return serviceErrorResponse(c, err, "advanceProject")
	}
	return c.Status(fiber.StatusOK).JSON(project)
}

// CanAdvance handles GET /api/projects/:id/gate
// @Summary Evaluate the next phase gate
// @Description Report whether the project can advance and what is missing, without mutating
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /projects/{id}/gate [get]
func (h *ProjectHandler) CanAdvance(c *fiber.Ctx) error {
	pass, missing, err := services.CanAdvance(h.DB, c.Params("id"), h.Gate)
	if err != nil {
		return serviceErrorResponse(c, err, "canAdvance")
	}
	if missing == nil {
		missing = []string{}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"pass":    pass,
		"missing": missing,
	})
}

// ListTransitions handles GET /api/projects/:id/transitions
// @Summary List phase transitions
// @Description Get the append-only phase transition history, oldest first
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} []map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /projects/{id}/transitions [get]
func (h *ProjectHandler) ListTransitions(c *fiber.Ctx) error {
	transitions, err := services.ListTransitions(h.DB, c.Params("id"))
	if err != nil {
		return serviceErrorResponse(c, err, "listTransitions")
	}
	return c.Status(fiber.StatusOK).JSON(transitions)
}
