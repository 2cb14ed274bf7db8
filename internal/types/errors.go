// errors.go
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

package types

import (
	"fmt"
	"strings"
)

// ProjectNotFoundError indicates the referenced project does not exist.
type ProjectNotFoundError struct {
	ProjectID string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project %q not found", e.ProjectID)
}

// VersionNotFoundError indicates a document or one of its versions does not
// exist (including versions removed by retention pruning).
type VersionNotFoundError struct {
	Filename string
	Version  uint64
}

func (e *VersionNotFoundError) Error() string {
	if e.Version == 0 {
		return fmt.Sprintf("document %q not found", e.Filename)
	}
	return fmt.Sprintf("document %q version %d not found", e.Filename, e.Version)
}

// PhaseGateError indicates the gate predicate for the next phase is unmet.
// Reasons lists the missing preconditions.
type PhaseGateError struct {
	FromPhase string
	ToPhase   string
	Reasons   []string
}

func (e *PhaseGateError) Error() string {
	return fmt.Sprintf("phase gate %s -> %s unmet: %s",
		e.FromPhase, e.ToPhase, strings.Join(e.Reasons, "; "))
}

// TerminalPhaseError indicates an attempt to advance a project already at the
// terminal phase.
type TerminalPhaseError struct {
	ProjectID string
}

func (e *TerminalPhaseError) Error() string {
	return fmt.Sprintf("project %q is at the terminal phase", e.ProjectID)
}

// ConcurrentModificationError indicates the caller lost a version or phase
// race. The operation is retryable.
type ConcurrentModificationError struct {
	Resource string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("E_VERSION - concurrent modification of %s, retry with current state", e.Resource)
}

// GenerationError indicates the external generator failed or timed out for a
// single artifact. It never aborts the whole generation batch.
type GenerationError struct {
	Artifact string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation of %q failed: %v", e.Artifact, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// StorageError indicates a blob or document persistence failure. Fatal for
// the affected operation; no partial state is committed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
