package services

import (
	"context"
	"errors"
	"testing"

	"github.com/amcq-expeed/opnxt-core/internal/blob"
)

func TestSweepOrphanBlobsRemovesStrandedContent(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()
	ctx := context.Background()

	keep := createTestProject(t, db)
	doomed := createTestProject(t, db)

	if _, err := SaveDocument(ctx, db, blobs, keep.ProjectID, "SRS.md", []byte("kept"), SaveMeta{}, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := SaveDocument(ctx, db, blobs, doomed.ProjectID, "SRS.md", []byte("stranded"), SaveMeta{}, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Project deletion leaves its blobs behind for the sweep.
	if err := DeleteProject(db, doomed.ProjectID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if blobs.Count() != 2 {
		t.Fatalf("Expected 2 blobs before sweep, got %d", blobs.Count())
	}

	removed, err := SweepOrphanBlobs(ctx, db, blobs)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 1 || blobs.Count() != 1 {
		t.Errorf("Expected exactly the stranded blob removed, removed=%d remaining=%d", removed, blobs.Count())
	}

	content, _, err := GetDocument(ctx, db, blobs, keep.ProjectID, "SRS.md", nil)
	if err != nil || string(content) != "kept" {
		t.Errorf("Expected live blob to survive the sweep, got %q/%v", content, err)
	}
}

func TestSweepOrphanBlobsSharedContentSurvives(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()
	ctx := context.Background()

	a := createTestProject(t, db)
	b := createTestProject(t, db)

	shared := []byte("same bytes in both projects")
	if _, err := SaveDocument(ctx, db, blobs, a.ProjectID, "BRD.md", shared, SaveMeta{}, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := SaveDocument(ctx, db, blobs, b.ProjectID, "BRD.md", shared, SaveMeta{}, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := DeleteProject(db, a.ProjectID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	removed, err := SweepOrphanBlobs(ctx, db, blobs)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected shared blob to survive, removed %d", removed)
	}

	if _, _, err := GetDocument(ctx, db, blobs, b.ProjectID, "BRD.md", nil); err != nil {
		t.Errorf("Expected surviving project's document readable, got %v", err)
	}
}

func TestSweepOrphanBlobsSkipsInFlightSaves(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()
	ctx := context.Background()

	// A concurrent save has deduplicated against this blob but not yet
	// committed its version row, so no version references the hash.
	content := []byte("deduplicated mid-save")
	hash := blob.HashContent(content)
	if err := blobs.Put(ctx, blob.Key(hash), content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	acquireBlobHash(hash)

	removed, err := SweepOrphanBlobs(ctx, db, blobs)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 0 || blobs.Count() != 1 {
		t.Errorf("Expected in-flight blob to survive the sweep, removed=%d remaining=%d",
			removed, blobs.Count())
	}

	// Once the save resolves without a version row the blob is collectable.
	releaseBlobHash(hash)
	removed, err = SweepOrphanBlobs(ctx, db, blobs)
	if err != nil {
		t.Fatalf("Second sweep failed: %v", err)
	}
	if removed != 1 || blobs.Count() != 0 {
		t.Errorf("Expected released blob to be swept, removed=%d remaining=%d",
			removed, blobs.Count())
	}
}

func TestStartBlobGCDisabledByEmptySchedule(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()

	c, err := StartBlobGC(db, blobs, "")
	if err != nil || c != nil {
		t.Errorf("Expected empty schedule to disable GC, got %v/%v", c, err)
	}
}

func TestStartBlobGCRejectsBadSchedule(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()

	if _, err := StartBlobGC(db, blobs, "not a cron spec"); err == nil {
		t.Error("Expected an invalid cron spec to error")
	} else if errors.Is(err, context.Canceled) {
		t.Errorf("Unexpected error kind: %v", err)
	}
}

func TestStartBlobGCValidSchedule(t *testing.T) {
	db := setupTestDB(t)
	blobs := blob.NewMemoryStore()

	c, err := StartBlobGC(db, blobs, "@hourly")
	if err != nil || c == nil {
		t.Fatalf("Expected GC to schedule, got %v/%v", c, err)
	}
	c.Stop()
}
