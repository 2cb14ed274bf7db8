// project.go
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

// Project represents a unit of work moving through the SDLC phases.
// CurrentPhase always holds one of the phase enum values defined in
// the phases package; new projects start at "charter".
type Project struct {
	ProjectID    string `gorm:"type:char(36);primaryKey"`
	Name         string `gorm:"size:255;not null"`
	CurrentPhase string `gorm:"size:32;not null;default:'charter'"`
	Metadata     JSON   `gorm:"type:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Documents    []Document `gorm:"foreignKey:ProjectID;references:ProjectID;constraint:OnDelete:CASCADE"`
}

// PhaseTransition is an append-only audit record of a state machine move.
type PhaseTransition struct {
	TransitionID uint64 `gorm:"primaryKey;autoIncrement"`
	ProjectID    string `gorm:"type:char(36);not null;index"`
	FromPhase    string `gorm:"size:32;not null"`
	ToPhase      string `gorm:"size:32;not null"`
	Actor        string `gorm:"size:255"`
	Forced       bool   `gorm:"not null;default:false"`
	At           time.Time
}

// TableName overrides the table name for Project
func (Project) TableName() string {
	return "projects"
}

// TableName overrides the table name for PhaseTransition
func (PhaseTransition) TableName() string {
	return "phase_transitions"
}
