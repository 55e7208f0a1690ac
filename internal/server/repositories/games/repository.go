package games

import (
	"context"

	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

type Repository interface {
	ListEnabled(ctx context.Context) ([]models.Game, error)
	Get(ctx context.Context, id string) (*models.Game, error)
	SetForceRefresh(ctx context.Context, id string, force bool) error
	ConsumeForceRefresh(ctx context.Context, id string) (bool, error)
}
