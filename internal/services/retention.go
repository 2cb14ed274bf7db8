package services

import (
	"context"
	"log"
	"strings"

	"github.com/amcq-expeed/opnxt-core/internal/blob"
	"github.com/amcq-expeed/opnxt-core/internal/models"
	"github.com/amcq-expeed/opnxt-core/internal/types"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// StartBlobGC schedules the periodic orphan blob sweep. An empty schedule
// disables it. The returned cron is already started; callers stop it on
// shutdown.
func StartBlobGC(db *gorm.DB, blobs blob.Store, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		removed, err := SweepOrphanBlobs(context.Background(), db, blobs)
		if err != nil {
			log.Printf("blob sweep failed: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("blob sweep removed %d orphaned blobs", removed)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

// SweepOrphanBlobs deletes every blob whose content hash no longer backs a
// document version. Complements the inline collection on save, which misses
// blobs stranded by project deletion or crashed transactions.
func SweepOrphanBlobs(ctx context.Context, db *gorm.DB, blobs blob.Store) (int, error) {
	keys, err := blobs.Keys(ctx)
	if err != nil {
		return 0, &types.StorageError{Op: "list blobs", Err: err}
	}

	var live []string
	err = db.Model(&models.DocumentVersion{}).
		Distinct("content_hash").
		Pluck("content_hash", &live).Error
	if err != nil {
		return 0, &types.StorageError{Op: "list live hashes", Err: err}
	}
	liveSet := make(map[string]bool, len(live))
	for _, h := range live {
		liveSet[h] = true
	}

	removed := 0
	for _, key := range keys {
		hash := strings.TrimPrefix(key, "sha256-")
		if liveSet[hash] || blobHashInFlight(hash) {
			continue
		}
		if err := blobs.Delete(ctx, key); err != nil {
			log.Printf("failed to delete orphaned blob %s: %v", key, err)
			continue
		}
		removed++
	}

	// Reclaim value log space on the Badger backend after a round of deletes.
	if bs, ok := blobs.(*blob.BadgerStore); ok && removed > 0 {
		if err := bs.RunValueLogGC(); err != nil {
			log.Printf("badger value log GC failed: %v", err)
		}
	}

	return removed, nil
}
