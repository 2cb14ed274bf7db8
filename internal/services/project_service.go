// project_service.go
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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amcq-expeed/opnxt-core/internal/models"
	"github.com/amcq-expeed/opnxt-core/internal/phases"
	"github.com/amcq-expeed/opnxt-core/internal/types"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateProject creates a project in the initial phase.
func CreateProject(db *gorm.DB, name string, metadata map[string]interface{}) (*models.Project, error) {
	project := models.Project{
		ProjectID:    uuid.NewString(),
		Name:         name,
		CurrentPhase: string(phases.Initial),
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("invalid project metadata: %w", err)
		}
		project.Metadata = models.JSON{JSON: datatypes.JSON(raw)}
	}

	if err := db.Create(&project).Error; err != nil {
		return nil, &types.StorageError{Op: "create project", Err: err}
	}
	return &project, nil
}

// GetProject loads a project by id.
func GetProject(db *gorm.DB, projectID string) (*models.Project, error) {
	var project models.Project
	err := db.Where("project_id = ?", projectID).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &types.ProjectNotFoundError{ProjectID: projectID}
		}
		return nil, &types.StorageError{Op: "load project", Err: err}
	}
	return &project, nil
}

// DeleteProject removes a project and everything it owns: documents, their
// versions, the context record, traceability edges and phase transitions.
// The cascade is explicit so behavior is identical on every dialect. Blob
// payloads are left for the orphan sweep.
func DeleteProject(db *gorm.DB, projectID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Where("project_id = ?", projectID).First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.ProjectNotFoundError{ProjectID: projectID}
			}
			return &types.StorageError{Op: "load project", Err: err}
		}

		var docIDs []uint64
		if err := tx.Model(&models.Document{}).
			Where("project_id = ?", projectID).
			Pluck("document_id", &docIDs).Error; err != nil {
			return &types.StorageError{Op: "list documents", Err: err}
		}

		if len(docIDs) > 0 {
			if err := tx.Where("document_id IN ?", docIDs).
				Delete(&models.DocumentVersion{}).Error; err != nil {
				return &types.StorageError{Op: "delete versions", Err: err}
			}
		}

		for _, model := range []interface{}{
			&models.Document{},
			&models.ContextRecord{},
			&models.TraceabilityEdge{},
			&models.PhaseTransition{},
		} {
			if err := tx.Where("project_id = ?", projectID).Delete(model).Error; err != nil {
				return &types.StorageError{Op: "cascade delete", Err: err}
			}
		}

		if err := tx.Delete(&project).Error; err != nil {
			return &types.StorageError{Op: "delete project", Err: err}
		}
		return nil
	})
}

// CanAdvance evaluates the gate predicate for the project's next transition
// without mutating anything.
func CanAdvance(db *gorm.DB, projectID string, cfg phases.GateConfig) (bool, []string, error) {
	project, err := GetProject(db, projectID)
	if err != nil {
		return false, nil, err
	}

	current := phases.Phase(project.CurrentPhase)
	if phases.IsTerminal(current) {
		return false, []string{"project is at the terminal phase"}, nil
	}

	input, err := gateInput(db, *project)
	if err != nil {
		return false, nil, err
	}

	result := phases.EvaluateGate(current, input, cfg)
	return result.Pass, result.Missing, nil
}

// AdvanceProject moves the project to its next phase if the gate predicate
// passes. force is the administrative override: it bypasses the predicate but
// still appends a PhaseTransition record.
func AdvanceProject(db *gorm.DB, projectID, actor string, force bool, cfg phases.GateConfig) (*models.Project, error) {
	project, err := GetProject(db, projectID)
	if err != nil {
		return nil, err
	}
	return AdvanceProjectFrom(db, projectID, phases.Phase(project.CurrentPhase), actor, force, cfg)
}

// AdvanceProjectFrom performs the phase transition with compare-and-swap
// semantics: the update only applies while the project is still in `from`.
// Of concurrent callers at most one wins; losers get a retryable
// ConcurrentModificationError.
func AdvanceProjectFrom(db *gorm.DB, projectID string, from phases.Phase, actor string, force bool, cfg phases.GateConfig) (*models.Project, error) {
	if phases.IsTerminal(from) {
		return nil, &types.TerminalPhaseError{ProjectID: projectID}
	}
	next, ok := phases.Next(from)
	if !ok {
		return nil, &types.TerminalPhaseError{ProjectID: projectID}
	}

	var updated models.Project
	err := db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Where("project_id = ?", projectID).First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.ProjectNotFoundError{ProjectID: projectID}
			}
			return &types.StorageError{Op: "load project", Err: err}
		}

		if phases.Phase(project.CurrentPhase) != from {
			return &types.ConcurrentModificationError{Resource: "project phase"}
		}

		if !force {
			input, err := gateInput(tx, project)
			if err != nil {
				return err
			}
			result := phases.EvaluateGate(from, input, cfg)
			if !result.Pass {
				return &types.PhaseGateError{
					FromPhase: string(from),
					ToPhase:   string(next),
					Reasons:   result.Missing,
				}
			}
		}

		res := tx.Model(&models.Project{}).
			Where("project_id = ? AND current_phase = ?", projectID, string(from)).
			Updates(map[string]interface{}{
				"current_phase": string(next),
				"updated_at":    time.Now().UTC(),
			})
		if res.Error != nil {
			return &types.StorageError{Op: "advance phase", Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return &types.ConcurrentModificationError{Resource: "project phase"}
		}

		transition := models.PhaseTransition{
			ProjectID: projectID,
			FromPhase: string(from),
			ToPhase:   string(next),
			Actor:     actor,
			Forced:    force,
			At:        time.Now().UTC(),
		}
		if err := tx.Create(&transition).Error; err != nil {
			return &types.StorageError{Op: "record phase transition", Err: err}
		}

		if err := tx.Where("project_id = ?", projectID).First(&updated).Error; err != nil {
			return &types.StorageError{Op: "reload project", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ListTransitions returns the append-only phase transition log, oldest first.
func ListTransitions(db *gorm.DB, projectID string) ([]models.PhaseTransition, error) {
	if _, err := GetProject(db, projectID); err != nil {
		return nil, err
	}
	var transitions []models.PhaseTransition
	err := db.Where("project_id = ?", projectID).
		Order("transition_id asc").
		Find(&transitions).Error
	if err != nil {
		return nil, &types.StorageError{Op: "list transitions", Err: err}
	}
	return transitions, nil
}

// gateInput assembles the pure predicate input for a project.
func gateInput(db *gorm.DB, project models.Project) (phases.GateInput, error) {
	var docs []models.Document
	if err := db.Where("project_id = ?", project.ProjectID).Find(&docs).Error; err != nil {
		return phases.GateInput{}, &types.StorageError{Op: "list documents", Err: err}
	}

	ctxData, err := contextData(db, project.ProjectID)
	if err != nil {
		return phases.GateInput{}, err
	}

	return phases.GateInput{Project: project, Context: ctxData, Documents: docs}, nil
}
