package announcements

import (
	"context"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

type Repository interface {
	SelectExternalIDs(ctx context.Context, game, language string) (map[string]struct{}, error)
	Insert(ctx context.Context, a *models.Announcement) error
	Update(ctx context.Context, a *models.Announcement) (bool, error)
	ReadActive(ctx context.Context, game, language string, now time.Time) ([]models.Announcement, error)
}
