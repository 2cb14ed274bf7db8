// template.go
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

package generator

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/amcq-expeed/opnxt-core/data"
	"github.com/amcq-expeed/opnxt-core/internal/models"
)

// artifactTitles maps artifact filenames to document titles.
var artifactTitles = map[string]string{
	"ProjectCharter.md":     "Project Charter",
	"BRD.md":                "Business Requirements Document",
	"SRS.md":                "Software Requirements Specification",
	"Backlog.md":            "Product Backlog",
	"SDS.md":                "Software Design Specification",
	"ImplementationPlan.md": "Implementation Plan",
	"TestPlan.md":           "Test Plan",
	"DeploymentGuide.md":    "Deployment Guide",
}

// TemplateGenerator renders artifacts from the built-in markdown templates.
// It is deterministic given the same project and context, which makes it the
// default offline generator and the one used in tests.
type TemplateGenerator struct {
	tmpl *template.Template
}

// requirementRow is one requirement table entry in the rendered artifact.
type requirementRow struct {
	ID   string
	Text string
}

// NewTemplateGenerator parses the embedded artifact templates.
func NewTemplateGenerator() (*TemplateGenerator, error) {
	tmpl, err := template.ParseFS(data.Templates, "templates/*.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse artifact templates: %w", err)
	}
	return &TemplateGenerator{tmpl: tmpl}, nil
}

// Generate renders the named artifact from the project context snapshot.
func (g *TemplateGenerator) Generate(ctx context.Context, artifact string, project models.Project, projCtx map[string]interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	title := artifactTitles[artifact]
	if title == "" {
		title = strings.TrimSuffix(artifact, ".md")
	}

	input := map[string]interface{}{
		"Title":        title,
		"Project":      project,
		"GeneratedAt":  time.Now().UTC().Format(time.RFC3339),
		"Overview":     stringValue(projCtx, "overview"),
		"Answers":      mapValue(projCtx, "answers"),
		"Summaries":    mapValue(projCtx, "summaries"),
		"Requirements": requirementRows(projCtx),
		"Uploads":      uploadNames(projCtx),
	}

	var buf bytes.Buffer
	if err := g.tmpl.ExecuteTemplate(&buf, "artifact.md.tmpl", input); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", artifact, err)
	}
	return buf.Bytes(), nil
}

func stringValue(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func mapValue(data map[string]interface{}, key string) map[string]interface{} {
	m, _ := data[key].(map[string]interface{})
	return m
}

// requirementRows flattens context "requirements" (id -> text) into rows
// sorted by id so rendering is deterministic.
func requirementRows(data map[string]interface{}) []requirementRow {
	reqs := mapValue(data, "requirements")
	if len(reqs) == 0 {
		return nil
	}
	rows := make([]requirementRow, 0, len(reqs))
	for id, text := range reqs {
		t, _ := text.(string)
		rows = append(rows, requirementRow{ID: id, Text: t})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// uploadNames lists ingested upload names sorted for determinism.
func uploadNames(data map[string]interface{}) []string {
	uploads := mapValue(data, "uploads")
	if len(uploads) == 0 {
		return nil
	}
	names := make([]string, 0, len(uploads))
	for name := range uploads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
