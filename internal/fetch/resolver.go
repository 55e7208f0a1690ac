package fetch

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/logging"
)

// Resolver pairs every fetch with its canonical-language rendering.
type Resolver struct {
	fetchers map[Publisher]Fetcher
	log      logging.Logger
}

func NewResolver(fetchers map[Publisher]Fetcher, log logging.Logger) *Resolver {
	if log == nil {
		log = logging.Nop{}
	}
	return &Resolver{fetchers: fetchers, log: log.With("module", "resolver")}
}

// Resolve fetches language and attaches the canonical bundle. When language
// is already canonical the same bundle fills both roles. A failed canonical
// fetch is logged and replaced by an empty bundle.
func (r *Resolver) Resolve(ctx context.Context, src Source, language string) (*Bundle, error) {
	f, ok := r.fetchers[src.Publisher]
	if !ok {
		return nil, fmt.Errorf("%w: no fetcher for publisher %q", common.ErrFetchFailed, src.Publisher)
	}

	b, err := f.Fetch(ctx, src, language)
	if err != nil {
		return nil, err
	}

	if src.IsCanonical(language) {
		b.Canonical = b
		return b, nil
	}

	canonical, err := f.Fetch(ctx, src, src.CanonicalLanguage)
	if err != nil {
		r.log.Warn(ctx, "canonical fetch failed, continuing without reference data",
			"game", src.Game, "language", language, "error", err)
		canonical = EmptyBundle(src.Game, src.CanonicalLanguage, src.Locale(src.CanonicalLanguage))
	}
	b.Canonical = canonical
	return b, nil
}
