// main.go
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

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/amcq-expeed/opnxt-core/internal/blob"
	"github.com/amcq-expeed/opnxt-core/internal/config"
	"github.com/amcq-expeed/opnxt-core/internal/database"
	"github.com/amcq-expeed/opnxt-core/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// The durable blob backend is probed in place; the memory backend has
	// nothing to probe outside the server process.
	var blobs blob.Store
	if cfg.BlobStore == "badger" {
		blobs, err = blob.OpenBadger(blob.BadgerConfig{Path: cfg.BlobPath})
		if err != nil {
			log.Fatalf("Failed to open blob store: %v", err)
		}
		defer blobs.Close()
	} else {
		blobs = blob.NewMemoryStore()
	}

	// Perform health check
	result := services.HealthCheck(cfg, db, blobs)

	// Output result as JSON
	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal health check result: %v", err)
	}

	fmt.Println(string(output))

	// Exit with appropriate code
	if result.Status != "healthy" {
		os.Exit(1)
	}
	os.Exit(0)
}
