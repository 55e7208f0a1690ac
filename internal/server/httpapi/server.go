// Package httpapi serves the public JSON API, admin operations and ops
// endpoints over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmitrijs2005/annfeed/internal/cache"
	"github.com/dmitrijs2005/annfeed/internal/logging"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
	"github.com/dmitrijs2005/annfeed/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type Feed interface {
	Supports(game string) bool
	GetAnnouncements(ctx context.Context, game, language string, force bool) []models.AnnouncementView
	RefreshAll(ctx context.Context) services.RefreshReport
	ForceRefresh(ctx context.Context, game string) error
}

type GameLister interface {
	ListEnabled(ctx context.Context) ([]models.Game, error)
}

type StateLister interface {
	List(ctx context.Context) ([]models.RefreshState, error)
}

type CacheStats interface {
	Stats() cache.Stats
}

type Deps struct {
	Feed    Feed
	Games   GameLister
	States  StateLister
	Cache   CacheStats
	Logger  logging.Logger
	Secret  string
	Origins []string
}

type HTTPServer struct {
	address string
	feed    Feed
	games   GameLister
	states  StateLister
	cache   CacheStats
	logger  logging.Logger
	secret  []byte
	origins []string
}

func NewHTTPServer(addr string, d Deps) *HTTPServer {
	l := d.Logger
	if l == nil {
		l = logging.Nop{}
	}
	return &HTTPServer{
		address: addr,
		feed:    d.Feed,
		games:   d.Games,
		states:  d.States,
		cache:   d.Cache,
		logger:  l.With("module", "http_server"),
		secret:  []byte(d.Secret),
		origins: d.Origins,
	}
}

// Router builds the chi router with every route mounted.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, "Not Found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
	})

	r.Get("/healthz", s.health)
	r.Get("/stats", s.stats)

	r.Route("/api", func(r chi.Router) {
		r.With(chimiddleware.Timeout(30*time.Second)).Get("/announcements", s.getAnnouncements)
		r.Get("/games", s.listGames)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/refresh", s.refreshAll)
			r.Post("/games/{game}/force", s.forceRefresh)
		})
	})

	return r
}

func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
