package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/amcq-expeed/opnxt-core/internal/blob"
	"github.com/amcq-expeed/opnxt-core/internal/types"
)

func TestSaveDocumentAllocatesContiguousVersions(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()
	project := createTestProject(t, db)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		content := []byte(fmt.Sprintf("# SRS rev %d", i))
		version, err := SaveDocument(ctx, db, blobs, project.ProjectID, "SRS.md", content, SaveMeta{}, 0)
		if err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
		if version.Version != uint64(i) {
			t.Errorf("Expected version %d, got %d", i, version.Version)
		}
	}

	listings, err := ListDocuments(db, project.ProjectID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listings) != 1 || listings[0].LatestVersion != 3 {
		t.Fatalf("Expected one document at version 3, got %+v", listings)
	}
	for i, v := range listings[0].Versions {
		if v.Version != uint64(i+1) {
			t.Errorf("Expected contiguous versions, got %d at index %d", v.Version, i)
		}
	}
}

func TestSaveDocumentDeduplicatesIdenticalContent(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()
	project := createTestProject(t, db)
	ctx := context.Background()

	content := []byte("# identical content")
	v1, err := SaveDocument(ctx, db, blobs, project.ProjectID, "SRS.md", content, SaveMeta{}, 0)
	if err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	v2, err := SaveDocument(ctx, db, blobs, project.ProjectID, "SRS.md", content, SaveMeta{}, 0)
	if err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	if v1.Version != 1 || v2.Version != 2 {
		t.Errorf("Expected distinct versions 1 and 2, got %d and %d", v1.Version, v2.Version)
	}
	if v1.BlobKey != v2.BlobKey {
		t.Errorf("Expected shared blob key, got %s vs %s", v1.BlobKey, v2.BlobKey)
	}
	if blobs.Count() != 1 {
		t.Errorf("Expected 1 stored blob, got %d", blobs.Count())
	}
}

func TestSaveDocumentUnknownProject(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()

	_, err := SaveDocument(context.Background(), db, blobs, "nope", "SRS.md", []byte("x"), SaveMeta{}, 0)
	var notFound *types.ProjectNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected ProjectNotFoundError, got %v", err)
	}
}

func TestGetDocumentLatestAndSpecific(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()
	project := createTestProject(t, db)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		content := []byte(fmt.Sprintf("rev %d", i))
		if _, err := SaveDocument(ctx, db, blobs, project.ProjectID, "BRD.md", content, SaveMeta{}, 0); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	content, version, err := GetDocument(ctx, db, blobs, project.ProjectID, "BRD.md", nil)
	if err != nil {
		t.Fatalf("Get latest failed: %v", err)
	}
	if string(content) != "rev 2" || version.Version != 2 {
		t.Errorf("Expected latest rev 2, got %q v%d", content, version.Version)
	}

	one := uint64(1)
	content, version, err = GetDocument(ctx, db, blobs, project.ProjectID, "BRD.md", &one)
	if err != nil {
		t.Fatalf("Get v1 failed: %v", err)
	}
	if string(content) != "rev 1" || version.Version != 1 {
		t.Errorf("Expected rev 1, got %q v%d", content, version.Version)
	}

	missing := uint64(9)
	_, _, err = GetDocument(ctx, db, blobs, project.ProjectID, "BRD.md", &missing)
	var notFound *types.VersionNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected VersionNotFoundError for v9, got %v", err)
	}

	_, _, err = GetDocument(ctx, db, blobs, project.ProjectID, "Missing.md", nil)
	if !errors.As(err, &notFound) {
		t.Errorf("Expected VersionNotFoundError for missing document, got %v", err)
	}
}

func TestRetentionPrunesOldVersions(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()
	project := createTestProject(t, db)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		content := []byte(fmt.Sprintf("rev %d", i))
		if _, err := SaveDocument(ctx, db, blobs, project.ProjectID, "SDS.md", content, SaveMeta{}, 3); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	listings, err := ListDocuments(db, project.ProjectID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listings[0].Versions) != 3 {
		t.Fatalf("Expected 3 retained versions, got %d", len(listings[0].Versions))
	}
	if listings[0].Versions[0].Version != 3 || listings[0].LatestVersion != 5 {
		t.Errorf("Expected versions 3..5 retained, got %+v", listings[0].Versions)
	}

	one := uint64(1)
	_, _, err = GetDocument(ctx, db, blobs, project.ProjectID, "SDS.md", &one)
	var notFound *types.VersionNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected pruned version to be gone, got %v", err)
	}

	// Pruned revisions had unique content, so their blobs were collected.
	if blobs.Count() != 3 {
		t.Errorf("Expected 3 blobs after pruning, got %d", blobs.Count())
	}
}

func TestRetentionNeverRemovesNewestVersion(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()
	project := createTestProject(t, db)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		content := []byte(fmt.Sprintf("rev %d", i))
		if _, err := SaveDocument(ctx, db, blobs, project.ProjectID, "SDS.md", content, SaveMeta{}, 1); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	content, version, err := GetDocument(ctx, db, blobs, project.ProjectID, "SDS.md", nil)
	if err != nil {
		t.Fatalf("Get latest failed: %v", err)
	}
	if string(content) != "rev 3" || version.Version != 3 {
		t.Errorf("Expected newest version to survive, got %q v%d", content, version.Version)
	}
}

func TestRetentionKeepsSharedBlob(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()
	project := createTestProject(t, db)
	ctx := context.Background()

	// v1 and v3 share content; pruning v1 must not delete the blob v3 uses.
	shared := []byte("shared content")
	saves := [][]byte{shared, []byte("middle"), shared}
	for i, content := range saves {
		if _, err := SaveDocument(ctx, db, blobs, project.ProjectID, "SDS.md", content, SaveMeta{}, 2); err != nil {
			t.Fatalf("Save %d failed: %v", i+1, err)
		}
	}

	content, _, err := GetDocument(ctx, db, blobs, project.ProjectID, "SDS.md", nil)
	if err != nil {
		t.Fatalf("Get latest failed: %v", err)
	}
	if string(content) != "shared content" {
		t.Errorf("Expected shared content to remain readable, got %q", content)
	}
}

func TestConcurrentSavesStayContiguous(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()
	project := createTestProject(t, db)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var raceErrors int

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			content := []byte(fmt.Sprintf("writer %d", n))
			_, err := SaveDocument(ctx, db, blobs, project.ProjectID, "Backlog.md", content, SaveMeta{}, 0)
			if err != nil {
				var race *types.ConcurrentModificationError
				if !errors.As(err, &race) {
					t.Errorf("Unexpected save error: %v", err)
					return
				}
				mu.Lock()
				raceErrors++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	listings, err := ListDocuments(db, project.ProjectID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	versions := listings[0].Versions
	if uint64(len(versions)) != listings[0].LatestVersion {
		t.Errorf("Expected latest_version %d to match %d stored versions",
			listings[0].LatestVersion, len(versions))
	}
	for i, v := range versions {
		if v.Version != uint64(i+1) {
			t.Fatalf("Version numbering has a gap: %d at index %d", v.Version, i)
		}
	}
	if int(listings[0].LatestVersion)+raceErrors != writers {
		t.Errorf("Expected %d writers to account for %d versions plus %d races",
			writers, listings[0].LatestVersion, raceErrors)
	}
}

func TestCollectOrphanBlobsSkipsInFlightSaves(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()
	ctx := context.Background()

	// Pruning released this hash, but a concurrent save of identical content
	// already deduplicated against the blob and has not committed yet.
	content := []byte("pruned but being re-saved")
	hash := blob.HashContent(content)
	if err := blobs.Put(ctx, blob.Key(hash), content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	acquireBlobHash(hash)

	collectOrphanBlobs(ctx, db, blobs, []string{hash})
	if blobs.Count() != 1 {
		t.Error("Expected in-flight blob to survive inline collection")
	}

	releaseBlobHash(hash)
	collectOrphanBlobs(ctx, db, blobs, []string{hash})
	if blobs.Count() != 0 {
		t.Error("Expected released orphan blob to be collected")
	}
}
