// Package repomanager provides a PostgreSQL RepositoryManager: repository
// constructors plus the embedded goose migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/annfeed/internal/dbx"
	"github.com/dmitrijs2005/annfeed/internal/server/migrations"
	"github.com/dmitrijs2005/annfeed/internal/server/repositories/announcements"
	"github.com/dmitrijs2005/annfeed/internal/server/repositories/games"
	"github.com/dmitrijs2005/annfeed/internal/server/repositories/refreshstates"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct{}

// Announcements returns an announcements.Repository bound to db, which may
// be a transaction.
func (m *PostgresRepositoryManager) Announcements(db dbx.DBTX) announcements.Repository {
	return announcements.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshStates(db dbx.DBTX) refreshstates.Repository {
	return refreshstates.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Games(db dbx.DBTX) games.Repository {
	return games.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
