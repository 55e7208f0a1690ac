// Package refresh decides when a (game, language) partition must be
// fetched again.
package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/logging"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

const DefaultThreshold = 12 * time.Hour

// StateReader loads refresh state. A missing row is reported as
// common.ErrorNotFound.
type StateReader interface {
	Get(ctx context.Context, game, language string) (*models.RefreshState, error)
}

// ForceConsumer atomically reads and clears a game's force flag.
type ForceConsumer interface {
	ConsumeForceRefresh(ctx context.Context, game string) (bool, error)
}

type Policy struct {
	states    StateReader
	force     ForceConsumer
	threshold time.Duration
	now       func() time.Time
	log       logging.Logger
}

type Option func(*Policy)

func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

func WithThreshold(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.threshold = d
		}
	}
}

// NewPolicy builds a policy. force may be nil when no game registry is
// available.
func NewPolicy(states StateReader, force ForceConsumer, log logging.Logger, opts ...Option) *Policy {
	if log == nil {
		log = logging.Nop{}
	}
	p := &Policy{
		states:    states,
		force:     force,
		threshold: DefaultThreshold,
		now:       time.Now,
		log:       log.With("module", "refresh"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// NeedRefresh reports whether the partition is stale. A set force flag is
// consumed here whether or not the following fetch succeeds. Read failures
// count as stale.
func (p *Policy) NeedRefresh(ctx context.Context, game, language string) bool {
	if p.force != nil {
		forced, err := p.force.ConsumeForceRefresh(ctx, game)
		if err != nil {
			p.log.Warn(ctx, "force flag check failed", "game", game, "error", err)
		} else if forced {
			p.log.Info(ctx, "force refresh consumed", "game", game, "language", language)
			return true
		}
	}

	st, err := p.states.Get(ctx, game, language)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			p.log.Warn(ctx, "refresh state unavailable", "game", game, "language", language, "error", err)
		}
		return true
	}
	if st.LastRefreshAt == nil || st.LastRefreshAt.IsZero() {
		return true
	}
	return p.now().Sub(*st.LastRefreshAt) > p.threshold
}
