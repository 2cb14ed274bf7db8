// context_service.go
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
	"github.com/amcq-expeed/opnxt-core/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetContext returns the project context. A project with no stored context
// yet gets an empty-data record, not an error: an empty context is a valid
// default.
func GetContext(db *gorm.DB, projectID string) (*models.ContextRecord, error) {
	if _, err := GetProject(db, projectID); err != nil {
		return nil, err
	}

	var record models.ContextRecord
	err := db.Where("project_id = ?", projectID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.ContextRecord{
				ProjectID: projectID,
				Data:      models.JSON{JSON: datatypes.JSON([]byte("{}"))},
				UpdatedAt: time.Now().UTC(),
			}, nil
		}
		return nil, &types.StorageError{Op: "load context", Err: err}
	}
	return &record, nil
}

// PutContext replaces the whole context document. Last writer wins; there is
// no merge logic, so concurrent PUTs are a known lost-update risk accepted by
// design.
func PutContext(db *gorm.DB, projectID string, data map[string]interface{}) (*models.ContextRecord, error) {
	if _, err := GetProject(db, projectID); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("invalid context data: %w", err)
	}

	record := models.ContextRecord{
		ProjectID: projectID,
		Data:      models.JSON{JSON: datatypes.JSON(raw)},
		UpdatedAt: time.Now().UTC(),
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return nil, &types.StorageError{Op: "put context", Err: err}
	}
	return &record, nil
}

// MergeUploadOverlay folds one ingested upload into the context under
// data["uploads"][name]. Used by upload ingestion, which must not clobber
// elicitation answers the way a whole-document PUT would. The context row is
// read under a row lock on server backends so concurrent merges serialize;
// SQLite has no FOR UPDATE and serializes writers itself.
func MergeUploadOverlay(db *gorm.DB, projectID, name string, overlay map[string]interface{}) error {
	return db.Transaction(func(tx *gorm.DB) error {
		read := tx
		if tx.Dialector.Name() != "sqlite" {
			read = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		data := map[string]interface{}{}
		var record models.ContextRecord
		err := read.Where("project_id = ?", projectID).First(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// First upload for the project starts from an empty context.
		case err != nil:
			return &types.StorageError{Op: "load context", Err: err}
		default:
			if data, err = decodeContextData(&record); err != nil {
				return err
			}
		}

		uploads, _ := data["uploads"].(map[string]interface{})
		if uploads == nil {
			uploads = make(map[string]interface{})
		}
		uploads[name] = overlay
		data["uploads"] = uploads

		_, err = PutContext(tx, projectID, data)
		return err
	})
}

// contextData returns the decoded context payload for a project, empty map
// when no record exists.
func contextData(db *gorm.DB, projectID string) (map[string]interface{}, error) {
	var record models.ContextRecord
	err := db.Where("project_id = ?", projectID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return map[string]interface{}{}, nil
		}
		return nil, &types.StorageError{Op: "load context", Err: err}
	}
	return decodeContextData(&record)
}

// decodeContextData unmarshals a context record's JSON payload.
func decodeContextData(record *models.ContextRecord) (map[string]interface{}, error) {
	data := map[string]interface{}{}
	if len(record.Data.JSON) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(record.Data.JSON, &data); err != nil {
		return nil, fmt.Errorf("corrupt context payload for project %s: %w", record.ProjectID, err)
	}
	return data, nil
}

// ContextData exposes decodeContextData for callers holding a record.
func ContextData(record *models.ContextRecord) (map[string]interface{}, error) {
	return decodeContextData(record)
}
