// Package server wires the feed service together and runs its gRPC and
// HTTP servers and the refresh scheduler until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/annfeed/internal/archive"
	"github.com/dmitrijs2005/annfeed/internal/cache"
	"github.com/dmitrijs2005/annfeed/internal/fetch"
	"github.com/dmitrijs2005/annfeed/internal/logging"
	"github.com/dmitrijs2005/annfeed/internal/parse"
	"github.com/dmitrijs2005/annfeed/internal/parse/genshin"
	"github.com/dmitrijs2005/annfeed/internal/parse/starrail"
	"github.com/dmitrijs2005/annfeed/internal/parse/wuthering"
	"github.com/dmitrijs2005/annfeed/internal/parse/zenless"
	"github.com/dmitrijs2005/annfeed/internal/refresh"
	"github.com/dmitrijs2005/annfeed/internal/server/config"
	"github.com/dmitrijs2005/annfeed/internal/server/httpapi"
	"github.com/dmitrijs2005/annfeed/internal/server/repositories/games"
	"github.com/dmitrijs2005/annfeed/internal/server/repositories/refreshstates"
	"github.com/dmitrijs2005/annfeed/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/annfeed/internal/server/scheduler"
	"github.com/dmitrijs2005/annfeed/internal/server/services"
	"github.com/dmitrijs2005/annfeed/internal/server/store"
	"github.com/dmitrijs2005/annfeed/internal/timex"

	gs "github.com/dmitrijs2005/annfeed/internal/server/grpc"
)

// Kuro content pages are crawled one request at a time at this pace.
const kuroCrawlInterval = 100 * time.Millisecond

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	closers   []io.Closer
	service   *services.AnnouncementService
	games     games.Repository
	states    refreshstates.Repository
	cache     cache.Cache
	scheduler *scheduler.Scheduler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, logging.ParseLevel(c.LogLevel))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, closers: []io.Closer{db}}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app.games = rm.Games(db)
	app.states = rm.RefreshStates(db)

	app.cache, err = app.newCache()
	if err != nil {
		app.Close()
		return nil, err
	}

	client := fetch.NewClient(&http.Client{Timeout: c.FetchTimeout})
	resolver := fetch.NewResolver(map[fetch.Publisher]fetch.Fetcher{
		fetch.PublisherMihoyo: fetch.NewMihoyoFetcher(client),
		fetch.PublisherKuro:   fetch.NewKuroFetcher(client, rate.NewLimiter(rate.Every(kuroCrawlInterval), 1), logger),
	}, logger)

	opts := []services.Option{
		services.WithFetchTimeout(c.FetchTimeout),
		services.WithConcurrency(c.RefreshConcurrency),
		services.WithLanguages(c.RefreshLanguages),
	}
	if c.ArchiveEnabled {
		s3c, err := archive.NewS3Client(ctx, archive.S3Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("archive init error: %w", err)
		}
		opts = append(opts, services.WithArchive(archive.NewS3Sink(s3c, c.S3Bucket)))
	}

	app.service = services.NewAnnouncementService(services.Deps{
		Sources:  fetch.DefaultSources(c.KuroListURL),
		Parsers:  []parse.Parser{genshin.New(), starrail.New(), zenless.New(), wuthering.New()},
		Resolver: resolver,
		Store:    store.New(db, rm, logger),
		Policy:   refresh.NewPolicy(app.states, app.games, logger, refresh.WithThreshold(c.RefreshThreshold)),
		States:   app.states,
		Games:    app.games,
		Cache:    app.cache,
		Logger:   logger,
	}, opts...)

	times, err := scheduler.ParseTimes(c.ScheduleTimes)
	if err != nil {
		app.Close()
		return nil, err
	}
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		logger.Warn(ctx, "unknown schedule timezone, using +08:00", "timezone", c.ScheduleTimezone, "error", err)
		loc = timex.ChinaStandardTime
	}
	app.scheduler = scheduler.New(app.service, times, loc, logger)

	return app, nil
}

func (app *App) newCache() (cache.Cache, error) {
	if app.config.CacheBackend != config.CacheRedis {
		return cache.NewMemoryCache(app.config.CacheTTL), nil
	}
	opts, err := redis.ParseURL(app.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rc := redis.NewClient(opts)
	app.closers = append(app.closers, rc)
	return cache.NewRedisCache(rc, cache.DefaultRedisPrefix, app.config.CacheTTL, app.logger), nil
}

// Close releases the database and cache connections.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.service, app.games, app.config.SecretKey)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.HTTPAddr, httpapi.Deps{
		Feed:    app.service,
		Games:   app.games,
		States:  app.states,
		Cache:   app.cache,
		Logger:  app.logger,
		Secret:  app.config.SecretKey,
		Origins: app.config.CORSOrigins,
	})
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		if err := app.scheduler.Run(ctx); err != nil {
			app.logger.Error(ctx, "scheduler error", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
}
