// generator.go
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

// Package generator defines the pluggable document content synthesis
// boundary. The core treats implementations as opaque: they take a project
// and its effective context and return artifact content, bounded by the
// caller's context deadline.
package generator

import (
	"context"

	"github.com/amcq-expeed/opnxt-core/internal/models"
)

// Generator produces the content of one artifact for a project.
type Generator interface {
	// Generate returns the content of the named artifact (e.g. "SRS.md")
	// from the project and its effective context snapshot. Implementations
	// must honor ctx cancellation.
	Generate(ctx context.Context, artifact string, project models.Project, projCtx map[string]interface{}) ([]byte, error)
}
