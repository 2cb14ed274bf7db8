// document.go
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

package models

import (
	"time"
)

// Document represents a named artifact slot within a project (e.g. "SRS.md").
// (project_id, filename) is unique; LatestVersion equals the highest version
// number among its DocumentVersion children.
type Document struct {
	DocumentID    uint64 `gorm:"primaryKey;autoIncrement"`
	ProjectID     string `gorm:"type:char(36);not null;index:idx_project_filename,unique"`
	Filename      string `gorm:"size:255;not null;index:idx_project_filename,unique"`
	LatestVersion uint64 `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Versions      []DocumentVersion `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

// DocumentVersion is one immutable snapshot of a Document. Version numbers
// for a given Document are contiguous starting at 1, assigned exactly once
// and never reused. The blob reference is weak: the blob may be shared by
// any number of versions with identical content.
type DocumentVersion struct {
	VersionID   uint64 `gorm:"primaryKey;autoIncrement"`
	DocumentID  uint64 `gorm:"not null;index:idx_document_version,unique"`
	Version     uint64 `gorm:"not null;index:idx_document_version,unique"`
	BlobKey     string `gorm:"size:80;not null"`
	ContentHash string `gorm:"size:64;not null;index"`
	Size        int64  `gorm:"not null"`
	ContentType string `gorm:"size:100"`
	Author      string `gorm:"size:255"`
	Meta        JSON   `gorm:"type:json"`
	CreatedAt   time.Time
}

// TableName overrides the table name for Document
func (Document) TableName() string {
	return "documents"
}

// TableName overrides the table name for DocumentVersion
func (DocumentVersion) TableName() string {
	return "document_versions"
}
