package refreshstates

import (
	"context"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, game, language string) (*models.RefreshState, error)
	List(ctx context.Context) ([]models.RefreshState, error)
	MarkSucceeded(ctx context.Context, game, language string, at time.Time) error
	MarkFailed(ctx context.Context, game, language string) error
}
