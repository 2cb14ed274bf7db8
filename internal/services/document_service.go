// document_service.go
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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/amcq-expeed/opnxt-core/internal/blob"
	"github.com/amcq-expeed/opnxt-core/internal/models"
	"github.com/amcq-expeed/opnxt-core/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// SaveMeta carries the caller-supplied metadata for a new document version.
type SaveMeta struct {
	ContentType string
	Author      string
	Meta        map[string]interface{}
}

// DocumentListing is the per-document entry ListDocuments returns: the slot
// plus its full version metadata, ordered by version ascending.
type DocumentListing struct {
	Filename      string                   `json:"filename"`
	LatestVersion uint64                   `json:"latest_version"`
	Versions      []models.DocumentVersion `json:"versions"`
}

// SaveDocument appends a new immutable version of (projectID, filename).
//
// The blob is written first, keyed by content hash so identical content is
// stored once. Version allocation happens inside a transaction with a
// compare-and-swap on Document.latest_version, which keeps numbering
// contiguous and gap-free under concurrent callers; losers get a retryable
// ConcurrentModificationError and no partial state. Retention pruning runs in
// the same transaction and never removes the newest version.
func SaveDocument(ctx context.Context, db *gorm.DB, blobs blob.Store, projectID, filename string, content []byte, meta SaveMeta, maxVersions int) (*models.DocumentVersion, error) {
	if _, err := GetProject(db, projectID); err != nil {
		return nil, err
	}

	contentHash := blob.HashContent(content)
	key := blob.Key(contentHash)
	acquireBlobHash(contentHash)
	defer releaseBlobHash(contentHash)
	if err := blobs.Put(ctx, key, content); err != nil {
		return nil, &types.StorageError{Op: "write blob", Err: err}
	}

	version := models.DocumentVersion{
		BlobKey:     key,
		ContentHash: contentHash,
		Size:        int64(len(content)),
		ContentType: meta.ContentType,
		Author:      meta.Author,
		CreatedAt:   time.Now().UTC(),
	}
	if version.ContentType == "" {
		version.ContentType = "text/markdown"
	}
	if meta.Meta != nil {
		raw, err := json.Marshal(meta.Meta)
		if err != nil {
			return nil, fmt.Errorf("invalid version metadata: %w", err)
		}
		version.Meta = models.JSON{JSON: datatypes.JSON(raw)}
	}

	var prunedHashes []string
	err := db.Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		err := tx.Where("project_id = ? AND filename = ?", projectID, filename).First(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			doc = models.Document{ProjectID: projectID, Filename: filename}
			if err := tx.Create(&doc).Error; err != nil {
				return classifyWriteError("create document", err)
			}
		} else if err != nil {
			return &types.StorageError{Op: "load document", Err: err}
		}

		next := doc.LatestVersion + 1
		version.DocumentID = doc.DocumentID
		version.Version = next
		if err := tx.Create(&version).Error; err != nil {
			return classifyWriteError("append version", err)
		}

		res := tx.Model(&models.Document{}).
			Where("document_id = ? AND latest_version = ?", doc.DocumentID, doc.LatestVersion).
			Updates(map[string]interface{}{
				"latest_version": next,
				"updated_at":     time.Now().UTC(),
			})
		if res.Error != nil {
			return &types.StorageError{Op: "update latest version", Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return &types.ConcurrentModificationError{Resource: "document version"}
		}

		var err2 error
		prunedHashes, err2 = pruneVersions(tx, doc.DocumentID, maxVersions)
		return err2
	})
	if err != nil {
		return nil, err
	}

	collectOrphanBlobs(ctx, db, blobs, prunedHashes)

	return &version, nil
}

// GetDocument returns the content and metadata of a document version.
// version nil means latest; an out-of-range or pruned version fails with
// VersionNotFoundError.
func GetDocument(ctx context.Context, db *gorm.DB, blobs blob.Store, projectID, filename string, versionNum *uint64) ([]byte, *models.DocumentVersion, error) {
	if _, err := GetProject(db, projectID); err != nil {
		return nil, nil, err
	}

	var doc models.Document
	err := db.Where("project_id = ? AND filename = ?", projectID, filename).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &types.VersionNotFoundError{Filename: filename}
		}
		return nil, nil, &types.StorageError{Op: "load document", Err: err}
	}

	wanted := doc.LatestVersion
	if versionNum != nil {
		wanted = *versionNum
	}

	var version models.DocumentVersion
	err = db.Where("document_id = ? AND version = ?", doc.DocumentID, wanted).First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &types.VersionNotFoundError{Filename: filename, Version: wanted}
		}
		return nil, nil, &types.StorageError{Op: "load version", Err: err}
	}

	content, err := blobs.Get(ctx, version.BlobKey)
	if err != nil {
		return nil, nil, &types.StorageError{Op: "read blob", Err: err}
	}
	return content, &version, nil
}

// ListDocuments returns every document of the project with its full version
// metadata list, versions ascending, documents ordered by filename.
func ListDocuments(db *gorm.DB, projectID string) ([]DocumentListing, error) {
	if _, err := GetProject(db, projectID); err != nil {
		return nil, err
	}

	var docs []models.Document
	err := db.Clauses(hints.CommentBefore("select", "opnxt:list_documents")).
		Where("project_id = ?", projectID).
		Order("filename asc").
		Preload("Versions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("version asc")
		}).
		Find(&docs).Error
	if err != nil {
		return nil, &types.StorageError{Op: "list documents", Err: err}
	}

	listings := make([]DocumentListing, 0, len(docs))
	for _, doc := range docs {
		listings = append(listings, DocumentListing{
			Filename:      doc.Filename,
			LatestVersion: doc.LatestVersion,
			Versions:      doc.Versions,
		})
	}
	return listings, nil
}

// pruneVersions enforces the retention cap inside the save transaction,
// returning the content hashes of removed versions so orphaned blobs can be
// collected after commit. The newest version survives any configuration.
func pruneVersions(tx *gorm.DB, documentID uint64, maxVersions int) ([]string, error) {
	if maxVersions <= 0 {
		return nil, nil
	}
	keep := maxVersions
	if keep < 1 {
		keep = 1
	}

	var versions []models.DocumentVersion
	err := tx.Where("document_id = ?", documentID).
		Order("version desc").
		Find(&versions).Error
	if err != nil {
		return nil, &types.StorageError{Op: "list versions for pruning", Err: err}
	}
	if len(versions) <= keep {
		return nil, nil
	}

	expired := versions[keep:]
	ids := make([]uint64, 0, len(expired))
	hashes := make([]string, 0, len(expired))
	for _, v := range expired {
		ids = append(ids, v.VersionID)
		hashes = append(hashes, v.ContentHash)
	}
	if err := tx.Where("version_id IN ?", ids).Delete(&models.DocumentVersion{}).Error; err != nil {
		return nil, &types.StorageError{Op: "prune versions", Err: err}
	}
	return hashes, nil
}

// inFlightBlobHashes tracks content hashes between a save's blob write and
// its version-row commit. A concurrent save of identical content deduplicates
// against the existing blob without rewriting it, so the orphan collectors
// must not treat that blob as unreferenced until the save resolves.
var inFlightBlobHashes = struct {
	mu   sync.Mutex
	refs map[string]int
}{refs: make(map[string]int)}

func acquireBlobHash(hash string) {
	inFlightBlobHashes.mu.Lock()
	defer inFlightBlobHashes.mu.Unlock()
	inFlightBlobHashes.refs[hash]++
}

func releaseBlobHash(hash string) {
	inFlightBlobHashes.mu.Lock()
	defer inFlightBlobHashes.mu.Unlock()
	if inFlightBlobHashes.refs[hash] <= 1 {
		delete(inFlightBlobHashes.refs, hash)
		return
	}
	inFlightBlobHashes.refs[hash]--
}

func blobHashInFlight(hash string) bool {
	inFlightBlobHashes.mu.Lock()
	defer inFlightBlobHashes.mu.Unlock()
	return inFlightBlobHashes.refs[hash] > 0
}

// collectOrphanBlobs deletes blobs whose content hash no longer backs any
// version. Best effort: a failed delete is logged and left for the periodic
// sweep, as is any hash an in-flight save still holds.
func collectOrphanBlobs(ctx context.Context, db *gorm.DB, blobs blob.Store, hashes []string) {
	for _, hash := range hashes {
		if blobHashInFlight(hash) {
			continue
		}
		var count int64
		if err := db.Model(&models.DocumentVersion{}).
			Where("content_hash = ?", hash).
			Count(&count).Error; err != nil {
			log.Printf("orphan check for blob %s failed: %v", hash, err)
			continue
		}
		if count > 0 {
			continue
		}
		if err := blobs.Delete(ctx, blob.Key(hash)); err != nil {
			log.Printf("failed to delete orphaned blob %s: %v", hash, err)
		}
	}
}

// classifyWriteError separates unique-constraint races (retryable) from hard
// storage failures.
func classifyWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &types.ConcurrentModificationError{Resource: op}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") {
		return &types.ConcurrentModificationError{Resource: op}
	}
	return &types.StorageError{Op: op, Err: err}
}
