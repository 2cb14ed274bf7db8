package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/amcq-expeed/opnxt-core/internal/models"
	"github.com/amcq-expeed/opnxt-core/internal/phases"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// One connection so every goroutine sees the same in-memory database and
	// SQLite serializes writers.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Project{},
		&models.PhaseTransition{},
		&models.Document{},
		&models.DocumentVersion{},
		&models.ContextRecord{},
		&models.TraceabilityEdge{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// createTestProject creates a project and returns it.
func createTestProject(t *testing.T, db *gorm.DB) *models.Project {
	t.Helper()
	project, err := CreateProject(db, "test project", nil)
	if err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}
	return project
}

var testGate = phases.GateConfig{CoverageThreshold: 80}

var testImpact = ImpactConfig{
	ExactWeight:   0.9,
	GroupWeight:   0.5,
	KeywordWeight: 0.2,
}
