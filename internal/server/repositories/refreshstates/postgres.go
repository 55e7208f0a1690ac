package refreshstates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/dbx"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, game, language string) (*models.RefreshState, error) {
	query :=
		`SELECT last_refresh_at, last_refresh_succeeded FROM refresh_states
		 WHERE game = $1 AND language = $2`

	s := &models.RefreshState{Game: game, Language: language}
	var at sql.NullTime
	err := r.db.QueryRowContext(ctx, query, game, language).Scan(&at, &s.LastRefreshSucceeded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if at.Valid {
		s.LastRefreshAt = &at.Time
	}
	return s, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.RefreshState, error) {
	query :=
		`SELECT game, language, last_refresh_at, last_refresh_succeeded FROM refresh_states
		 ORDER BY game, language`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.RefreshState
	for rows.Next() {
		var s models.RefreshState
		var at sql.NullTime
		if err := rows.Scan(&s.Game, &s.Language, &at, &s.LastRefreshSucceeded); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if at.Valid {
			t := at.Time
			s.LastRefreshAt = &t
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) MarkSucceeded(ctx context.Context, game, language string, at time.Time) error {
	query :=
		`INSERT INTO refresh_states (game, language, last_refresh_at, last_refresh_succeeded)
		 VALUES ($1, $2, $3, TRUE)
		 ON CONFLICT (game, language) DO UPDATE
		 SET last_refresh_at = EXCLUDED.last_refresh_at, last_refresh_succeeded = TRUE`

	if _, err := r.db.ExecContext(ctx, query, game, language, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// MarkFailed records a failed cycle. The last successful refresh time is
// kept so the partition stays eligible for the next attempt on schedule.
func (r *PostgresRepository) MarkFailed(ctx context.Context, game, language string) error {
	query :=
		`INSERT INTO refresh_states (game, language, last_refresh_succeeded)
		 VALUES ($1, $2, FALSE)
		 ON CONFLICT (game, language) DO UPDATE
		 SET last_refresh_succeeded = FALSE`

	if _, err := r.db.ExecContext(ctx, query, game, language); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
