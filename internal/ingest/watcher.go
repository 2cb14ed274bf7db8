// watcher.go
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

// Package ingest watches a drop directory for uploaded requirement source
// files and folds them into project contexts. Files are named
// <projectID>__<name>; anything else is ignored.
package ingest

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gorm.io/gorm"

	"github.com/amcq-expeed/opnxt-core/internal/services"
)

// nameSeparator splits the project id from the upload name in a filename.
const nameSeparator = "__"

// Watcher ingests uploaded files dropped into a directory.
type Watcher struct {
	DB  *gorm.DB
	Dir string

	fsw *fsnotify.Watcher
}

// New creates a watcher for dir. The directory is created when missing.
func New(db *gorm.DB, dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{DB: db, Dir: dir, fsw: fsw}, nil
}

// Start processes files already present, then watches for new ones until ctx
// is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	w.scanExisting()

	go func() {
		defer func() { _ = w.fsw.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					// Writers may still be flushing when the event fires.
					time.Sleep(100 * time.Millisecond)
					w.ingestFile(event.Name)
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				log.Printf("upload watcher error: %v", err)
			}
		}
	}()
}

// scanExisting ingests files that were dropped while the service was down.
func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		log.Printf("upload scan failed: %v", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.ingestFile(filepath.Join(w.Dir, entry.Name()))
	}
}

// ingestFile indexes one upload and merges it into the project context. The
// file is removed after a successful merge so restarts do not re-ingest it.
func (w *Watcher) ingestFile(path string) {
	base := filepath.Base(path)
	projectID, name, ok := strings.Cut(base, nameSeparator)
	if !ok || projectID == "" || name == "" {
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		log.Printf("failed to read upload %s: %v", base, err)
		return
	}

	overlay := map[string]interface{}{
		"requirement_ids": services.ExtractRequirementIDs(content),
		"size":            len(content),
		"ingested_at":     time.Now().UTC().Format(time.RFC3339),
	}
	if err := services.MergeUploadOverlay(w.DB, projectID, name, overlay); err != nil {
		log.Printf("failed to ingest upload %s: %v", base, err)
		return
	}

	if err := os.Remove(path); err != nil {
		log.Printf("failed to remove ingested upload %s: %v", base, err)
	}
	log.Printf("ingested upload %s for project %s", name, projectID)
}
