package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/fetch"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

type gameAnnouncements struct {
	GameID        string                    `json:"game_id"`
	Announcements []models.AnnouncementView `json:"announcements"`
}

// splitDotted splits "a.b.c" into lower-cased, trimmed, distinct non-empty
// parts in first-seen order.
func splitDotted(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ".") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func filterCategories() []string {
	out := make([]string, 0, len(models.FilterCategories))
	for c := range models.FilterCategories {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// getAnnouncements serves
// GET /api/announcements?lang=<tag>&games=a.b[&<game>_subgroup=x.y]
func (s *HTTPServer) getAnnouncements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rawLang := q.Get("lang")
	if rawLang == "" {
		writeJSON(w, http.StatusBadRequest, "Missing required parameter: lang", nil)
		return
	}
	lang, err := fetch.NormalizeLanguage(rawLang)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			fmt.Sprintf("Unsupported language: '%s'. Supported languages: %s", rawLang, strings.Join(fetch.Languages, ", ")), nil)
		return
	}

	if q.Get("games") == "" {
		writeJSON(w, http.StatusBadRequest, "Missing required parameter: games", nil)
		return
	}
	games := splitDotted(q.Get("games"))
	if len(games) == 0 {
		writeJSON(w, http.StatusBadRequest, "Empty game list provided", nil)
		return
	}

	var invalid []string
	for _, g := range games {
		if !s.feed.Supports(g) {
			invalid = append(invalid, g)
		}
	}
	if len(invalid) > 0 {
		writeJSON(w, http.StatusBadRequest, "Invalid game IDs: "+strings.Join(invalid, ", "), nil)
		return
	}

	filters := make(map[string][]string, len(games))
	for _, g := range games {
		types := splitDotted(q.Get(g + "_subgroup"))
		if len(types) == 0 {
			continue
		}
		var bad []string
		for _, t := range types {
			if _, ok := models.FilterCategories[t]; !ok {
				bad = append(bad, t)
			}
		}
		if len(bad) > 0 {
			writeJSON(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid activity types for %s: %s", g, strings.Join(bad, ", ")),
				map[string]any{"valid_types": filterCategories()})
			return
		}
		filters[g] = types
	}

	result := make([]gameAnnouncements, 0, len(games))
	for _, g := range games {
		views := s.feed.GetAnnouncements(r.Context(), g, lang, false)
		if len(views) == 0 {
			continue
		}
		if types, ok := filters[g]; ok {
			kept := make([]models.AnnouncementView, 0, len(views))
			for _, v := range views {
				if slices.Contains(types, string(v.Category)) {
					kept = append(kept, v)
				}
			}
			views = kept
		}
		result = append(result, gameAnnouncements{GameID: g, Announcements: views})
	}

	if len(result) == 0 {
		writeJSON(w, http.StatusNotFound, "No announcements found for the specified criteria", nil)
		return
	}
	writeJSON(w, http.StatusOK, "", map[string]any{"announcements": result})
}

func (s *HTTPServer) listGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.games.ListEnabled(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "list games", "error", err)
		writeJSON(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	if games == nil {
		games = []models.Game{}
	}
	writeJSON(w, http.StatusOK, "", map[string]any{"games": games})
}

func (s *HTTPServer) refreshAll(w http.ResponseWriter, r *http.Request) {
	s.logger.Info(r.Context(), "refresh requested", "subject", adminSubject(r.Context()))

	report := s.feed.RefreshAll(r.Context())
	if report.Error != "" {
		writeJSON(w, http.StatusServiceUnavailable, report.Error, report)
		return
	}
	writeJSON(w, http.StatusOK, "", report)
}

func (s *HTTPServer) forceRefresh(w http.ResponseWriter, r *http.Request) {
	game := strings.ToLower(chi.URLParam(r, "game"))

	err := s.feed.ForceRefresh(r.Context(), game)
	switch {
	case err == nil:
		s.logger.Info(r.Context(), "force refresh flagged", "game", game, "subject", adminSubject(r.Context()))
		writeJSON(w, http.StatusOK, "", map[string]any{"game_id": game, "force_refresh": true})
	case errors.Is(err, common.ErrUnknownGame), errors.Is(err, common.ErrorNotFound):
		writeJSON(w, http.StatusNotFound, fmt.Sprintf("Unknown game: %s", game), nil)
	default:
		s.logger.Error(r.Context(), "force refresh", "game", game, "error", err)
		writeJSON(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "", map[string]any{"status": "OK"})
}

// stats reports cache counters and the last refresh outcome per pair.
func (s *HTTPServer) stats(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"cache": s.cache.Stats()}

	states, err := s.states.List(r.Context())
	if err != nil {
		s.logger.Warn(r.Context(), "list refresh states", "error", err)
		data["refresh_states_error"] = err.Error()
	} else {
		data["refresh_states"] = states
	}
	writeJSON(w, http.StatusOK, "", data)
}
