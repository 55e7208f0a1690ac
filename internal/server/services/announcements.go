package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/annfeed/internal/cache"
	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/fetch"
	"github.com/dmitrijs2005/annfeed/internal/logging"
	"github.com/dmitrijs2005/annfeed/internal/parse"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
	"github.com/dmitrijs2005/annfeed/internal/server/store"
)

const (
	DefaultFetchTimeout       = 10 * time.Second
	DefaultRefreshConcurrency = 4
)

// Stages reported in failure logs.
const (
	stageFetch   = "fetch"
	stageArchive = "archive"
	stageParse   = "parse"
	stageStore   = "store"
	stageState   = "state"
	stageRead    = "read"
)

type BundleResolver interface {
	Resolve(ctx context.Context, src fetch.Source, language string) (*fetch.Bundle, error)
}

type AnnouncementStore interface {
	Upsert(ctx context.Context, game, language string, records []models.Announcement) (store.UpsertResult, error)
	ReadActive(ctx context.Context, game, language string, now time.Time) ([]models.AnnouncementView, error)
}

type RefreshPolicy interface {
	NeedRefresh(ctx context.Context, game, language string) bool
}

// RefreshRecorder persists the outcome of a fetch cycle.
type RefreshRecorder interface {
	MarkSucceeded(ctx context.Context, game, language string, at time.Time) error
	MarkFailed(ctx context.Context, game, language string) error
}

type GameRegistry interface {
	ListEnabled(ctx context.Context) ([]models.Game, error)
	SetForceRefresh(ctx context.Context, id string, force bool) error
}

// BundleArchiver keeps a copy of every successfully fetched bundle.
type BundleArchiver interface {
	Archive(ctx context.Context, b *fetch.Bundle) error
}

// PairResult is the outcome of one (game, language) refresh in a sweep.
type PairResult struct {
	Game      string `json:"game"`
	Language  string `json:"language"`
	Refreshed bool   `json:"refreshed"`
	Active    int    `json:"active"`
	Error     string `json:"error,omitempty"`
}

// RefreshReport summarises a RefreshAll sweep.
type RefreshReport struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Pairs      []PairResult `json:"pairs"`
	Error      string       `json:"error,omitempty"`
}

// Failed counts pairs whose refresh did not complete.
func (r RefreshReport) Failed() int {
	n := 0
	for _, p := range r.Pairs {
		if !p.Refreshed {
			n++
		}
	}
	return n
}

// AnnouncementService coordinates cache, refresh policy, fetching, parsing
// and storage for every (game, language) partition.
type AnnouncementService struct {
	sources  map[string]fetch.Source
	parsers  map[string]parse.Parser
	resolver BundleResolver
	store    AnnouncementStore
	policy   RefreshPolicy
	states   RefreshRecorder
	games    GameRegistry
	cache    cache.Cache
	archive  BundleArchiver
	log      logging.Logger

	now          func() time.Time
	fetchTimeout time.Duration
	concurrency  int
	languages    []string

	flight singleflight.Group
}

type Option func(*AnnouncementService)

func WithClock(now func() time.Time) Option {
	return func(s *AnnouncementService) { s.now = now }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(s *AnnouncementService) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *AnnouncementService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLanguages sets the languages refreshed by RefreshAll.
func WithLanguages(langs []string) Option {
	return func(s *AnnouncementService) {
		if len(langs) > 0 {
			s.languages = slices.Clone(langs)
		}
	}
}

func WithArchive(a BundleArchiver) Option {
	return func(s *AnnouncementService) { s.archive = a }
}

// Deps groups the collaborators of AnnouncementService.
type Deps struct {
	Sources  map[string]fetch.Source
	Parsers  []parse.Parser
	Resolver BundleResolver
	Store    AnnouncementStore
	Policy   RefreshPolicy
	States   RefreshRecorder
	Games    GameRegistry
	Cache    cache.Cache
	Logger   logging.Logger
}

func NewAnnouncementService(d Deps, opts ...Option) *AnnouncementService {
	log := d.Logger
	if log == nil {
		log = logging.Nop{}
	}
	parsers := make(map[string]parse.Parser, len(d.Parsers))
	for _, p := range d.Parsers {
		parsers[p.Game()] = p
	}

	s := &AnnouncementService{
		sources:      d.Sources,
		parsers:      parsers,
		resolver:     d.Resolver,
		store:        d.Store,
		policy:       d.Policy,
		states:       d.States,
		games:        d.Games,
		cache:        d.Cache,
		log:          log.With("module", "announcements"),
		now:          time.Now,
		fetchTimeout: DefaultFetchTimeout,
		concurrency:  DefaultRefreshConcurrency,
		languages:    slices.Clone(fetch.Languages),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Supports reports whether game has both a source and a parser.
func (s *AnnouncementService) Supports(game string) bool {
	_, src := s.sources[game]
	_, p := s.parsers[game]
	return src && p
}

// GetAnnouncements returns the active announcements of one partition,
// refreshing it from the publisher first when the policy or force asks
// for it. Failures are logged and degrade to whatever is stored; the
// result is never nil.
func (s *AnnouncementService) GetAnnouncements(ctx context.Context, game, language string, force bool) []models.AnnouncementView {
	views, _ := s.get(ctx, game, language, force)
	return views
}

// get is GetAnnouncements that also reports the refresh cycle error, if
// a cycle ran and failed.
func (s *AnnouncementService) get(ctx context.Context, game, language string, force bool) ([]models.AnnouncementView, error) {
	log := s.log.With("game", game, "language", language)
	if !s.Supports(game) {
		log.Warn(ctx, "unsupported game requested")
		return []models.AnnouncementView{}, fmt.Errorf("%w: %q", common.ErrUnknownGame, game)
	}

	key := cache.Key{Game: game, Language: language}
	if force {
		s.cache.Invalidate(ctx, key)
	} else if views, ok := s.cache.Get(ctx, key); ok {
		return views, nil
	}

	needRefresh := force || s.policy.NeedRefresh(ctx, game, language)
	var cycleErr error
	if needRefresh {
		views, err := s.refresh(ctx, game, language)
		if err == nil {
			return views, nil
		}
		cycleErr = err
	}

	views, err := s.store.ReadActive(ctx, game, language, s.now())
	if err != nil {
		log.Error(ctx, "read active failed", "stage", stageRead, "error", err)
		return []models.AnnouncementView{}, errors.Join(cycleErr, err)
	}
	if len(views) > 0 {
		s.cache.Set(ctx, key, views)
	}
	return views, cycleErr
}

// refresh runs one fetch-and-store cycle per key at a time. Concurrent
// callers for the same key share the in-flight result.
func (s *AnnouncementService) refresh(ctx context.Context, game, language string) ([]models.AnnouncementView, error) {
	key := cache.Key{Game: game, Language: language}
	v, err, _ := s.flight.Do(key.String(), func() (any, error) {
		return s.cycle(context.WithoutCancel(ctx), game, language)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]models.AnnouncementView)), nil
}

func (s *AnnouncementService) cycle(ctx context.Context, game, language string) ([]models.AnnouncementView, error) {
	log := s.log.With("game", game, "language", language)
	src := s.sources[game]

	fail := func(stage string, err error) ([]models.AnnouncementView, error) {
		log.Error(ctx, "refresh cycle failed", "stage", stage, "error", err)
		if merr := s.states.MarkFailed(ctx, game, language); merr != nil {
			log.Error(ctx, "recording failed refresh", "stage", stageState, "error", merr)
		}
		return nil, err
	}

	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	b, err := s.resolver.Resolve(fctx, src, language)
	cancel()
	if err != nil {
		return fail(stageFetch, err)
	}

	if s.archive != nil {
		if err := s.archive.Archive(ctx, b); err != nil {
			log.Warn(ctx, "bundle archive failed", "stage", stageArchive, "error", err)
		}
	}

	records := s.parsers[game].Parse(b, language)
	if len(records) == 0 && !b.Empty() {
		log.Warn(ctx, "parser produced no records", "stage", stageParse)
	}

	res, err := s.store.Upsert(ctx, game, language, records)
	if err != nil {
		return fail(stageStore, err)
	}

	now := s.now()
	if err := s.states.MarkSucceeded(ctx, game, language, now); err != nil {
		log.Error(ctx, "recording refresh", "stage", stageState, "error", err)
	}

	// The ingest is recorded as succeeded; a failed read-back leaves that state.
	views, err := s.store.ReadActive(ctx, game, language, now)
	if err != nil {
		log.Error(ctx, "refresh cycle failed", "stage", stageRead, "error", err)
		return nil, err
	}
	s.cache.Set(ctx, cache.Key{Game: game, Language: language}, views)

	log.Info(ctx, "refreshed",
		"parsed", len(records), "inserted", res.Inserted, "updated", res.Updated,
		"unchanged", res.Unchanged, "active", len(views))
	return views, nil
}

// RefreshAll force-refreshes every enabled game in every refresh
// language. A failing pair never stops the others.
func (s *AnnouncementService) RefreshAll(ctx context.Context) RefreshReport {
	report := RefreshReport{StartedAt: s.now()}

	games, err := s.games.ListEnabled(ctx)
	if err != nil {
		s.log.Error(ctx, "listing enabled games", "error", err)
		report.Error = err.Error()
		report.FinishedAt = s.now()
		return report
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, game := range games {
		if !s.Supports(game.ID) {
			s.log.Warn(ctx, "enabled game has no source", "game", game.ID)
			continue
		}
		for _, lang := range s.languages {
			g.Go(func() error {
				views, err := s.get(ctx, game.ID, lang, true)
				r := PairResult{Game: game.ID, Language: lang, Refreshed: err == nil, Active: len(views)}
				if err != nil {
					r.Error = err.Error()
				}
				mu.Lock()
				report.Pairs = append(report.Pairs, r)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	slices.SortFunc(report.Pairs, func(a, b PairResult) int {
		if a.Game != b.Game {
			return cmp.Compare(a.Game, b.Game)
		}
		return cmp.Compare(a.Language, b.Language)
	})
	report.FinishedAt = s.now()

	s.log.Info(ctx, "refresh sweep finished", "pairs", len(report.Pairs), "failed", report.Failed())
	return report
}

// ForceRefresh flags game for refresh on its next read and drops its
// cached partitions.
func (s *AnnouncementService) ForceRefresh(ctx context.Context, game string) error {
	if !s.Supports(game) {
		return fmt.Errorf("%w: %q", common.ErrUnknownGame, game)
	}
	if err := s.games.SetForceRefresh(ctx, game, true); err != nil {
		return err
	}
	s.cache.InvalidateGame(ctx, game)
	return nil
}
