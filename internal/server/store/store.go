// Package store persists parsed announcements per (game, language)
// partition and reads back the active view.
package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/dbx"
	"github.com/dmitrijs2005/annfeed/internal/logging"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
	"github.com/dmitrijs2005/annfeed/internal/server/repositories/repomanager"
)

// DB is a connection pool that can also start transactions.
type DB interface {
	dbx.DBTX
	dbx.TxBeginner
}

// UpsertResult counts what happened to each record of a batch.
type UpsertResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

type Store struct {
	db    DB
	repos repomanager.RepositoryManager
	log   logging.Logger
}

func New(db DB, repos repomanager.RepositoryManager, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop{}
	}
	return &Store{db: db, repos: repos, log: log.With("module", "store")}
}

// Upsert writes records into the (game, language) partition in a single
// transaction. Known external ids are updated in place, new ones are
// inserted. Records whose content hash matches the stored row are not
// rewritten. On failure nothing is committed and the error wraps
// common.ErrStoreFailed.
func (s *Store) Upsert(ctx context.Context, game, language string, records []models.Announcement) (UpsertResult, error) {
	var res UpsertResult

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Announcements(tx)

		existing, err := repo.SelectExternalIDs(ctx, game, language)
		if err != nil {
			return fmt.Errorf("load ids: %w", err)
		}

		for i := range records {
			a := records[i]
			a.Game = game
			a.Language = language
			a.ContentHash = ContentHash(&a)

			if _, ok := existing[a.ExternalID]; ok {
				changed, err := repo.Update(ctx, &a)
				if err != nil {
					return fmt.Errorf("update %s: %w", a.ExternalID, err)
				}
				if changed {
					res.Updated++
				} else {
					res.Unchanged++
				}
				continue
			}

			if err := repo.Insert(ctx, &a); err != nil {
				return fmt.Errorf("insert %s: %w", a.ExternalID, err)
			}
			existing[a.ExternalID] = struct{}{}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%w: %s/%s: %w", common.ErrStoreFailed, game, language, err)
	}

	s.log.Debug(ctx, "upsert committed",
		"game", game, "language", language,
		"inserted", res.Inserted, "updated", res.Updated, "unchanged", res.Unchanged)
	return res, nil
}

// ReadActive returns the partition's records whose end time is after now,
// most recently started first.
func (s *Store) ReadActive(ctx context.Context, game, language string, now time.Time) ([]models.AnnouncementView, error) {
	rows, err := s.repos.Announcements(s.db).ReadActive(ctx, game, language, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", common.ErrStoreFailed, game, language, err)
	}

	views := make([]models.AnnouncementView, 0, len(rows))
	for i := range rows {
		views = append(views, rows[i].View())
	}
	return views, nil
}

// ContentHash digests every mutable field of a record.
func ContentHash(a *models.Announcement) []byte {
	h, _ := blake2b.New256(nil)
	for _, f := range []string{
		a.UUID, a.Title, a.Content, a.BannerImage,
		hashTime(a.StartTime), hashTime(a.EndTime), string(a.Category),
	} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(f)))
		h.Write(n[:])
		h.Write([]byte(f))
	}
	return h.Sum(nil)
}

func hashTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
