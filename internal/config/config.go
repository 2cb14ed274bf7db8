// config.go
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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration, read once at startup.
type Config struct {
	// Server configuration
	Port string

	// Database configuration. DBType "memory" runs a shared-cache in-memory
	// SQLite database; the durable backends keep the same contract.
	DBType            string // memory, sqlite, mysql, postgres, sqlserver
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Blob store configuration
	BlobStore string // memory, badger
	BlobPath  string

	// Retention: cap of most recent versions kept per document.
	// 0 keeps everything.
	MaxDocVersions int

	// Phase gate thresholds
	CoverageThreshold float64

	// Impact confidence weights (heuristic tiering, tunable)
	ImpactExactWeight   float64
	ImpactGroupWeight   float64
	ImpactKeywordWeight float64

	// Generator configuration
	Generator       string // template, openai
	OpenAIModel     string
	GenerateTimeout time.Duration

	// Upload ingestion directory; empty disables the watcher.
	UploadsDir string

	// Cron spec for the orphan blob sweep; empty disables it.
	BlobGCSchedule string
}

// Load loads configuration from the environment, reading a .env file first
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "3000"),
		DBType:              getEnv("DB_TYPE", "memory"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBDatabase:          getEnv("DB_DATABASE", ""),
		DBUser:              getEnv("DB_USER", ""),
		DBPassword:          getEnv("DB_PASSWORD", ""),
		DBConnectionLimit:   getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		BlobStore:           getEnv("BLOB_STORE", "memory"),
		BlobPath:            getEnv("BLOB_PATH", "./blobs"),
		MaxDocVersions:      getEnvAsInt("MAX_DOC_VERSIONS", 0),
		CoverageThreshold:   getEnvAsFloat("GATE_COVERAGE_THRESHOLD", 80),
		ImpactExactWeight:   getEnvAsFloat("IMPACT_EXACT_WEIGHT", 0.9),
		ImpactGroupWeight:   getEnvAsFloat("IMPACT_GROUP_WEIGHT", 0.5),
		ImpactKeywordWeight: getEnvAsFloat("IMPACT_KEYWORD_WEIGHT", 0.2),
		Generator:           getEnv("GENERATOR", "template"),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GenerateTimeout:     getEnvAsDuration("GENERATE_TIMEOUT", 60*time.Second),
		UploadsDir:          getEnv("UPLOADS_DIR", ""),
		BlobGCSchedule:      getEnv("BLOB_GC_SCHEDULE", ""),
	}

	switch cfg.DBType {
	case "memory", "sqlite":
		// No server credentials needed.
	case "mysql", "mariadb", "postgres", "postgresql", "sqlserver", "mssql":
		if cfg.DBDatabase == "" {
			return nil, fmt.Errorf("DB_DATABASE is required for DB_TYPE=%s", cfg.DBType)
		}
		if cfg.DBUser == "" {
			return nil, fmt.Errorf("DB_USER is required for DB_TYPE=%s", cfg.DBType)
		}
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}

	switch cfg.BlobStore {
	case "memory":
	case "badger":
		if cfg.BlobPath == "" {
			return nil, fmt.Errorf("BLOB_PATH is required for BLOB_STORE=badger")
		}
	default:
		return nil, fmt.Errorf("unsupported blob store: %s", cfg.BlobStore)
	}

	if cfg.Generator != "template" && cfg.Generator != "openai" {
		return nil, fmt.Errorf("unsupported generator: %s", cfg.Generator)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
