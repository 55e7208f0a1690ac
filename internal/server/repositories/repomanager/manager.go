package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/annfeed/internal/dbx"
	"github.com/dmitrijs2005/annfeed/internal/server/repositories/announcements"
	"github.com/dmitrijs2005/annfeed/internal/server/repositories/games"
	"github.com/dmitrijs2005/annfeed/internal/server/repositories/refreshstates"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Announcements(db dbx.DBTX) announcements.Repository
	RefreshStates(db dbx.DBTX) refreshstates.Repository
	Games(db dbx.DBTX) games.Repository
}
