package models

import (
	"time"
)

// Target kinds for traceability edges.
const (
	TargetKindDoc     = "doc"
	TargetKindSection = "section"
	TargetKindModule  = "module"
)

// TraceabilityEdge links a requirement identifier (BR-*, FR-*, NFR-*) to a
// document, document section or code module that references it. Edges are
// derived from generated content, never user-edited; the edge set for a
// document is replaced atomically on each generation pass.
type TraceabilityEdge struct {
	EdgeID        uint64  `gorm:"primaryKey;autoIncrement"`
	ProjectID     string  `gorm:"type:char(36);not null;index"`
	DocumentID    uint64  `gorm:"not null;index"`
	RequirementID string  `gorm:"size:32;not null;index"`
	TargetKind    string  `gorm:"size:16;not null"`
	TargetName    string  `gorm:"size:512;not null"`
	Confidence    float64 `gorm:"not null"`
	CreatedAt     time.Time
}

// TableName overrides the table name for TraceabilityEdge
func (TraceabilityEdge) TableName() string {
	return "traceability_edges"
}
