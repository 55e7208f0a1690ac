package games

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) ListEnabled(ctx context.Context) ([]models.Game, error) {
	query :=
		`SELECT game_id, name, enabled, force_refresh FROM games
		 WHERE enabled
		 ORDER BY game_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Game
	for rows.Next() {
		var g models.Game
		if err := rows.Scan(&g.ID, &g.Name, &g.Enabled, &g.ForceRefresh); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Game, error) {
	query :=
		`SELECT game_id, name, enabled, force_refresh FROM games
		 WHERE game_id = $1`

	g := &models.Game{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.Enabled, &g.ForceRefresh)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) SetForceRefresh(ctx context.Context, id string, force bool) error {
	query :=
		`UPDATE games SET force_refresh = $2
		 WHERE game_id = $1`

	res, err := r.db.ExecContext(ctx, query, id, force)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// ConsumeForceRefresh clears the force flag and reports whether it was set.
// Only one concurrent caller observes true.
func (r *PostgresRepository) ConsumeForceRefresh(ctx context.Context, id string) (bool, error) {
	query :=
		`UPDATE games SET force_refresh = FALSE
		 WHERE game_id = $1 AND force_refresh
		 RETURNING game_id`

	var got string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&got)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}
