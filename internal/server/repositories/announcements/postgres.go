package announcements

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/dbx"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) SelectExternalIDs(ctx context.Context, game, language string) (map[string]struct{}, error) {
	query :=
		`SELECT external_id FROM announcements
		 WHERE game = $1 AND language = $2`

	rows, err := r.db.QueryContext(ctx, query, game, language)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Insert stores a new record. A row already stored under the same key by
// a concurrent writer is overwritten in place, keeping its id and uuid.
func (r *PostgresRepository) Insert(ctx context.Context, a *models.Announcement) error {
	query :=
		`INSERT INTO announcements (uuid, game, language, external_id, title, content,
		     banner_image, start_time, end_time, category, content_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (game, language, external_id) DO UPDATE
		 SET title = EXCLUDED.title, content = EXCLUDED.content,
		     banner_image = EXCLUDED.banner_image, start_time = EXCLUDED.start_time,
		     end_time = EXCLUDED.end_time, category = EXCLUDED.category,
		     content_hash = EXCLUDED.content_hash, updated_at = CURRENT_TIMESTAMP
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		a.UUID, a.Game, a.Language, a.ExternalID, a.Title, a.Content,
		a.BannerImage, nullTime(a.StartTime), nullTime(a.EndTime), string(a.Category), a.ContentHash,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing record. Rows whose
// content hash is unchanged are left untouched; the result reports whether
// a row was rewritten.
func (r *PostgresRepository) Update(ctx context.Context, a *models.Announcement) (bool, error) {
	query :=
		`UPDATE announcements
		 SET uuid = $4, title = $5, content = $6, banner_image = $7, start_time = $8,
		     end_time = $9, category = $10, content_hash = $11, updated_at = now()
		 WHERE game = $1 AND language = $2 AND external_id = $3
		   AND content_hash IS DISTINCT FROM $11`

	res, err := r.db.ExecContext(ctx, query,
		a.Game, a.Language, a.ExternalID,
		a.UUID, a.Title, a.Content, a.BannerImage, nullTime(a.StartTime), nullTime(a.EndTime),
		string(a.Category), a.ContentHash,
	)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// ReadActive returns records whose end time is after now, most recently
// started first. Records without an end time are never active.
func (r *PostgresRepository) ReadActive(ctx context.Context, game, language string, now time.Time) ([]models.Announcement, error) {
	query :=
		`SELECT id, uuid, external_id, title, content, banner_image, start_time, end_time,
		        category, created_at, updated_at
		 FROM announcements
		 WHERE game = $1 AND language = $2 AND end_time > $3
		 ORDER BY start_time DESC NULLS LAST, id`

	rows, err := r.db.QueryContext(ctx, query, game, language, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Announcement
	for rows.Next() {
		a := models.Announcement{Game: game, Language: language}
		var start, end sql.NullTime
		var category string
		if err := rows.Scan(&a.ID, &a.UUID, &a.ExternalID, &a.Title, &a.Content, &a.BannerImage,
			&start, &end, &category, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		a.StartTime = timePtr(start)
		a.EndTime = timePtr(end)
		a.Category = models.Category(category)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
