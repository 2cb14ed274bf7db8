// common.go
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
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/amcq-expeed/opnxt-core/internal/types"
	"github.com/amcq-expeed/opnxt-core/internal/utils"
)

// serviceErrorResponse maps service-layer errors to HTTP responses. Every
// handler funnels failures through here so status codes stay consistent.
func serviceErrorResponse(c *fiber.Ctx, err error, opTag string) error {
	var notFoundProject *types.ProjectNotFoundError
	if errors.As(err, &notFoundProject) {
		return utils.NotFoundResponse(c, notFoundProject.Error())
	}

	var notFoundVersion *types.VersionNotFoundError
	if errors.As(err, &notFoundVersion) {
		return utils.NotFoundResponse(c, notFoundVersion.Error())
	}

	var gate *types.PhaseGateError
	if errors.As(err, &gate) {
		return utils.GateErrorResponse(c, gate.FromPhase, gate.ToPhase, gate.Reasons)
	}

	var terminal *types.TerminalPhaseError
	if errors.As(err, &terminal) {
		return utils.ErrorResponse(c, terminal.Error(), fiber.StatusConflict, "terminal")
	}

	var race *types.ConcurrentModificationError
	if errors.As(err, &race) {
		return utils.VersionErrorResponse(c, race.Error())
	}

	var generation *types.GenerationError
	if errors.As(err, &generation) {
		return utils.ErrorResponse(c, generation.Error(), fiber.StatusBadGateway, "generation")
	}

	return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, opTag)
}

// formatVersion renders a version number for response headers.
func formatVersion(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// parseVersionQuery reads the optional ?version= query parameter. nil means
// latest; a non-numeric value is a client error.
func parseVersionQuery(c *fiber.Ctx) (*uint64, bool) {
	raw := c.Query("version")
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}
