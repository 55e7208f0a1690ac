// Package cache keeps the active announcement view of each (game, language)
// partition for a fixed time after it was written.
package cache

import (
	"context"

	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

// Key addresses one (game, language) partition.
type Key struct {
	Game     string
	Language string
}

func (k Key) String() string {
	return k.Game + ":" + k.Language
}

// Stats are observability counters. They never drive behaviour.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Expired uint64 `json:"expired"`
	Entries int    `json:"entries"`
}

// Cache is the read-through layer in front of the store. Backend errors are
// reported as misses.
type Cache interface {
	Get(ctx context.Context, key Key) ([]models.AnnouncementView, bool)
	Set(ctx context.Context, key Key, data []models.AnnouncementView)
	Invalidate(ctx context.Context, key Key)
	InvalidateGame(ctx context.Context, game string)
	InvalidateAll(ctx context.Context)
	Stats() Stats
}
