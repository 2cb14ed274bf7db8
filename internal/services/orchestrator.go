// orchestrator.go
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

package services

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/amcq-expeed/opnxt-core/internal/blob"
	"github.com/amcq-expeed/opnxt-core/internal/generator"
	"github.com/amcq-expeed/opnxt-core/internal/models"
	"github.com/amcq-expeed/opnxt-core/internal/phases"
	"github.com/amcq-expeed/opnxt-core/internal/types"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// saveRetryAttempts bounds the retry loop for lost version races.
const saveRetryAttempts = 3

// saveRetryBaseDelay is the first backoff step; it doubles per attempt.
const saveRetryBaseDelay = 25 * time.Millisecond

// maxConcurrentArtifacts caps parallel generator invocations per request.
const maxConcurrentArtifacts = 4

// Orchestrator is the single entry point the API layer drives. It composes
// the phase state machine, context store, document repository, blob store and
// traceability graph into the two operations that matter.
type Orchestrator struct {
	DB     *gorm.DB
	Blobs  blob.Store
	Gen    generator.Generator
	Gate   phases.GateConfig
	Impact ImpactConfig

	// MaxDocVersions is the retention cap applied on every save.
	MaxDocVersions int

	// DefaultTimeout bounds each generator call when the request supplies
	// no timeout of its own.
	DefaultTimeout time.Duration
}

// GenerateOptions are the per-request knobs of GenerateDocuments.
type GenerateOptions struct {
	// Answers and Summaries merge into a transient generation context; they
	// are not persisted back to the context store.
	Answers   map[string]interface{}
	Summaries map[string]interface{}

	// Artifacts overrides the phase's default artifact set, e.g. to retry
	// only previously failed artifacts.
	Artifacts []string

	// Timeout bounds each artifact's generator call.
	Timeout time.Duration

	// Author is recorded on produced versions.
	Author string
}

// Artifact statuses reported per generated document.
const (
	ArtifactStatusSaved  = "saved"
	ArtifactStatusFailed = "failed"
)

// ArtifactResult is the per-artifact outcome of one generation request.
type ArtifactResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Version  uint64 `json:"version,omitempty"`
	Error    string `json:"error,omitempty"`
}

// GenerateResult aggregates a generation request: per-artifact statuses plus
// a manifest of save locations for the successes.
type GenerateResult struct {
	ProjectID string            `json:"project_id"`
	Phase     string            `json:"phase"`
	Artifacts []ArtifactResult  `json:"artifacts"`
	Manifest  map[string]string `json:"manifest"`
}

// Failed reports whether every requested artifact failed.
func (r *GenerateResult) Failed() bool {
	for _, a := range r.Artifacts {
		if a.Status == ArtifactStatusSaved {
			return false
		}
	}
	return len(r.Artifacts) > 0
}

// GenerateDocuments produces the current phase's artifacts for a project.
//
// The context snapshot is taken once at the start; concurrent context writers
// do not affect an in-flight generation. Artifacts are independent: one
// artifact's generator failure or timeout never rolls back the others, and
// the caller can retry just the failures via GenerateOptions.Artifacts.
func (o *Orchestrator) GenerateDocuments(ctx context.Context, projectID string, opts GenerateOptions) (*GenerateResult, error) {
	project, err := GetProject(o.DB, projectID)
	if err != nil {
		return nil, err
	}

	snapshot, err := contextData(o.DB, projectID)
	if err != nil {
		return nil, err
	}
	effective := mergeTransient(snapshot, opts)

	artifacts := opts.Artifacts
	if len(artifacts) == 0 {
		artifacts = phases.ArtifactsFor(phases.Phase(project.CurrentPhase))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = o.DefaultTimeout
	}

	result := &GenerateResult{
		ProjectID: projectID,
		Phase:     project.CurrentPhase,
		Artifacts: make([]ArtifactResult, len(artifacts)),
		Manifest:  make(map[string]string),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentArtifacts)
	for i, artifact := range artifacts {
		g.Go(func() error {
			result.Artifacts[i] = o.generateOne(gctx, *project, artifact, effective, opts.Author, timeout)
			return nil
		})
	}
	// Workers never return errors; partial success is the contract.
	_ = g.Wait()

	for _, a := range result.Artifacts {
		if a.Status == ArtifactStatusSaved {
			result.Manifest[a.Filename] = documentLocation(projectID, a.Filename, a.Version)
		}
	}
	return result, nil
}

// generateOne runs the generator for a single artifact and persists the
// outcome: generate, save, rebuild the document's traceability edges.
func (o *Orchestrator) generateOne(ctx context.Context, project models.Project, artifact string, effective map[string]interface{}, author string, timeout time.Duration) ArtifactResult {
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	content, err := o.Gen.Generate(genCtx, artifact, project, effective)
	if err != nil {
		genErr := &types.GenerationError{Artifact: artifact, Err: err}
		log.Printf("generation failed for %s/%s: %v", project.ProjectID, artifact, err)
		return ArtifactResult{Filename: artifact, Status: ArtifactStatusFailed, Error: genErr.Error()}
	}

	version, err := o.saveWithRetry(ctx, project.ProjectID, artifact, content, author)
	if err != nil {
		return ArtifactResult{Filename: artifact, Status: ArtifactStatusFailed, Error: err.Error()}
	}

	if err := RebuildDocumentTrace(o.DB, project.ProjectID, version.DocumentID, artifact, content, o.Impact.ExactWeight); err != nil {
		// The version is durable; a failed trace rebuild only degrades
		// impact analysis until the next generation pass.
		log.Printf("trace rebuild failed for %s/%s: %v", project.ProjectID, artifact, err)
	}

	return ArtifactResult{Filename: artifact, Status: ArtifactStatusSaved, Version: version.Version}
}

// saveWithRetry retries lost version races with doubling backoff, bounded by
// saveRetryAttempts.
func (o *Orchestrator) saveWithRetry(ctx context.Context, projectID, filename string, content []byte, author string) (*models.DocumentVersion, error) {
	meta := SaveMeta{ContentType: "text/markdown", Author: author}
	delay := saveRetryBaseDelay

	var lastErr error
	for attempt := 0; attempt < saveRetryAttempts; attempt++ {
		version, err := SaveDocument(ctx, o.DB, o.Blobs, projectID, filename, content, meta, o.MaxDocVersions)
		if err == nil {
			return version, nil
		}
		lastErr = err

		var race *types.ConcurrentModificationError
		if !errors.As(err, &race) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return nil, lastErr
}

// ComputeImpacts is the read-only path: it walks the traceability graph for
// the changed requirement ids.
func (o *Orchestrator) ComputeImpacts(ctx context.Context, projectID string, changedIDs []string) ([]ImpactItem, error) {
	return ComputeImpacts(ctx, o.DB, o.Blobs, o.Impact, projectID, changedIDs)
}

// Advance drives the phase state machine through the facade.
func (o *Orchestrator) Advance(projectID, actor string, force bool) (*models.Project, error) {
	return AdvanceProject(o.DB, projectID, actor, force, o.Gate)
}

// mergeTransient overlays request answers/summaries onto the context
// snapshot without touching the stored context.
func mergeTransient(snapshot map[string]interface{}, opts GenerateOptions) map[string]interface{} {
	if len(opts.Answers) == 0 && len(opts.Summaries) == 0 {
		return snapshot
	}

	effective := make(map[string]interface{}, len(snapshot))
	for k, v := range snapshot {
		effective[k] = v
	}

	overlay := func(key string, extra map[string]interface{}) {
		if len(extra) == 0 {
			return
		}
		merged := map[string]interface{}{}
		if existing, ok := effective[key].(map[string]interface{}); ok {
			for k, v := range existing {
				merged[k] = v
			}
		}
		for k, v := range extra {
			merged[k] = v
		}
		effective[key] = merged
	}
	overlay("answers", opts.Answers)
	overlay("summaries", opts.Summaries)
	return effective
}

// documentLocation renders the retrieval path of a saved version for the
// response manifest.
func documentLocation(projectID, filename string, version uint64) string {
	return "/api/projects/" + projectID + "/documents/" + filename +
		"?version=" + strconv.FormatUint(version, 10)
}
