// documents.go
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
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/amcq-expeed/opnxt-core/internal/services"
	"github.com/amcq-expeed/opnxt-core/internal/types"
	"github.com/amcq-expeed/opnxt-core/internal/utils"
)

// DocumentHandler handles document generation and retrieval routes
type DocumentHandler struct {
	Orch *services.Orchestrator
}

// GenerateDocuments handles POST /api/projects/:id/documents
// @Summary Generate phase documents
// @Description Generate the current phase's artifacts; partial failure is reported per artifact
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param body body object false "Transient answers, summaries, artifact filter and per-artifact timeout in milliseconds"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 502 {object} map[string]interface{}
// @Router /projects/{id}/documents [post]
func (h *DocumentHandler) GenerateDocuments(c *fiber.Ctx) error {
	var body struct {
		Answers   map[string]interface{} `json:"answers"`
		Summaries map[string]interface{} `json:"summaries"`
		Artifacts types.FlexList[string] `json:"artifacts"`
		Author    string                 `json:"author"`
		TimeoutMs types.FlexUint64       `json:"timeout_ms"`
	}
	// An empty body generates the phase's default artifact set.
	_ = c.BodyParser(&body)

	result, err := h.Orch.GenerateDocuments(c.Context(), c.Params("id"), services.GenerateOptions{
		Answers:   body.Answers,
		Summaries: body.Summaries,
		Artifacts: body.Artifacts.Slice(),
		Author:    body.Author,
		Timeout:   time.Duration(body.TimeoutMs.Uint64()) * time.Millisecond,
	})
	if err != nil {
		return serviceErrorResponse(c, err, "generateDocuments")
	}

	status := fiber.StatusOK
	if result.Failed() {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(result)
}

// ListDocuments handles GET /api/projects/:id/documents
// @Summary List project documents
// @Description List every document with its full version metadata
// @Tags Documents
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} []map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /projects/{id}/documents [get]
func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	listings, err := services.ListDocuments(h.Orch.DB, c.Params("id"))
	if err != nil {
		return serviceErrorResponse(c, err, "listDocuments")
	}
	return c.Status(fiber.StatusOK).JSON(listings)
}

// GetDocument handles GET /api/projects/:id/documents/:filename
// @Summary Get document content
// @Description Get a document version's content; version query defaults to latest
// @Tags Documents
// @Produce plain
// @Param id path string true "Project ID"
// @Param filename path string true "Document filename"
// @Param version query int false "Version number, latest when omitted"
// @Success 200 {string} string
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /projects/{id}/documents/{filename} [get]
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	versionNum, ok := parseVersionQuery(c)
	if !ok {
		return utils.ErrorResponse(c, "Invalid version", fiber.StatusBadRequest, "document.validation.version")
	}

	content, version, err := services.GetDocument(c.Context(), h.Orch.DB, h.Orch.Blobs,
		c.Params("id"), c.Params("filename"), versionNum)
	if err != nil {
		return serviceErrorResponse(c, err, "getDocument")
	}

	c.Set(fiber.HeaderContentType, version.ContentType)
	c.Set("X-Document-Version", formatVersion(version.Version))
	c.Set("X-Content-Hash", version.ContentHash)
	return c.Status(fiber.StatusOK).Send(content)
}
