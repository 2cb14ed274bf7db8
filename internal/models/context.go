package models

import (
	"time"
)

// ContextRecord is the per-project mutable aggregate of elicitation state:
// answers, generated summaries and uploaded-requirement overlays. One record
// per project; whole-document PUT is last-writer-wins.
type ContextRecord struct {
	ContextID uint64 `gorm:"primaryKey;autoIncrement"`
	ProjectID string `gorm:"type:char(36);not null;uniqueIndex"`
	Data      JSON   `gorm:"type:json"`
	UpdatedAt time.Time
}

// TableName overrides the table name for ContextRecord
func (ContextRecord) TableName() string {
	return "project_contexts"
}
