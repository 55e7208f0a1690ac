package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/annfeed/internal/cache"
	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/server/auth"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
	"github.com/dmitrijs2005/annfeed/internal/server/services"
)

const secret = "test-secret"

type call struct {
	game, language string
	force          bool
}

type fakeFeed struct {
	mu     sync.Mutex
	calls  []call
	views  map[string][]models.AnnouncementView
	report services.RefreshReport
	forced []string
	err    error
}

func (f *fakeFeed) Supports(game string) bool {
	switch game {
	case "genshin", "starrail", "zenless", "wuthering":
		return true
	}
	return false
}

func (f *fakeFeed) GetAnnouncements(ctx context.Context, game, language string, force bool) []models.AnnouncementView {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{game, language, force})
	return f.views[game]
}

func (f *fakeFeed) RefreshAll(ctx context.Context) services.RefreshReport { return f.report }

func (f *fakeFeed) ForceRefresh(ctx context.Context, game string) error {
	if f.err != nil {
		return f.err
	}
	if !f.Supports(game) {
		return fmt.Errorf("%w: %q", common.ErrUnknownGame, game)
	}
	f.forced = append(f.forced, game)
	return nil
}

type fakeGames struct {
	games []models.Game
	err   error
}

func (g fakeGames) ListEnabled(ctx context.Context) ([]models.Game, error) { return g.games, g.err }

type fakeStates struct {
	states []models.RefreshState
	err    error
}

func (s fakeStates) List(ctx context.Context) ([]models.RefreshState, error) { return s.states, s.err }

type fakeStats struct{}

func (fakeStats) Stats() cache.Stats { return cache.Stats{Hits: 3, Misses: 1, Entries: 2} }

func view(id int64, title string, c models.Category) models.AnnouncementView {
	end := "2024-03-20 00:00:00"
	return models.AnnouncementView{ID: id, OfficialID: fmt.Sprint(id), Title: title, EndTime: &end, Category: c}
}

func newTestServer(feed *fakeFeed, games fakeGames, states fakeStates) http.Handler {
	return NewHTTPServer(":0", Deps{
		Feed:   feed,
		Games:  games,
		States: states,
		Cache:  fakeStats{},
		Secret: secret,
	}).Router()
}

type response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, h http.Handler, method, target, token string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func token(t *testing.T, validity time.Duration) string {
	t.Helper()
	tok, err := auth.GenerateToken("ops", []byte(secret), validity)
	require.NoError(t, err)
	return tok
}

func TestGetAnnouncements(t *testing.T) {
	feed := &fakeFeed{views: map[string][]models.AnnouncementView{
		"genshin": {
			view(1, "Version 4.5", models.CategoryVersion),
			view(2, "Spring Event", models.CategoryEvent),
			view(3, "Banner", models.CategoryGacha),
		},
		"starrail": {view(4, "Trailblaze", models.CategoryEvent)},
	}}
	h := newTestServer(feed, fakeGames{}, fakeStates{})

	rec, body := do(t, h, http.MethodGet, "/api/announcements?lang=ZH-hans&games=Genshin.starrail.zenless&genshin_subgroup=version.gacha", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200, body.Code)
	assert.Equal(t, "success", body.Message)

	var data struct {
		Announcements []gameAnnouncements `json:"announcements"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.Len(t, data.Announcements, 2)

	assert.Equal(t, "genshin", data.Announcements[0].GameID)
	var titles []string
	for _, v := range data.Announcements[0].Announcements {
		titles = append(titles, v.Title)
	}
	assert.Equal(t, []string{"Version 4.5", "Banner"}, titles)
	assert.Equal(t, "starrail", data.Announcements[1].GameID)

	feed.mu.Lock()
	defer feed.mu.Unlock()
	for _, c := range feed.calls {
		assert.Equal(t, "zh-Hans", c.language)
		assert.False(t, c.force)
	}
	assert.Len(t, feed.calls, 3)
	// the stored slice is not filtered in place
	assert.Len(t, feed.views["genshin"], 3)
}

func TestGetAnnouncements_Errors(t *testing.T) {
	h := newTestServer(&fakeFeed{}, fakeGames{}, fakeStates{})

	tests := []struct {
		name   string
		target string
		status int
		msg    string
	}{
		{"missing lang", "/api/announcements?games=genshin", http.StatusBadRequest, "Missing required parameter: lang"},
		{"bad lang", "/api/announcements?lang=xx-bogus&games=genshin", http.StatusBadRequest, "Unsupported language"},
		{"missing games", "/api/announcements?lang=en", http.StatusBadRequest, "Missing required parameter: games"},
		{"empty games", "/api/announcements?lang=en&games=..", http.StatusBadRequest, "Empty game list provided"},
		{"unknown game", "/api/announcements?lang=en&games=genshin.tetris", http.StatusBadRequest, "Invalid game IDs: tetris"},
		{"bad subgroup", "/api/announcements?lang=en&games=genshin&genshin_subgroup=event.raid", http.StatusBadRequest, "Invalid activity types for genshin: raid"},
		{"nothing found", "/api/announcements?lang=en&games=genshin", http.StatusNotFound, "No announcements found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status, body.Code)
			assert.Contains(t, body.Message, tt.msg)
		})
	}
}

func TestListGames(t *testing.T) {
	games := []models.Game{{ID: "genshin", Name: "Genshin Impact", Enabled: true}}
	h := newTestServer(&fakeFeed{}, fakeGames{games: games}, fakeStates{})

	rec, body := do(t, h, http.MethodGet, "/api/games", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Games []models.Game `json:"games"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, games, data.Games)

	h = newTestServer(&fakeFeed{}, fakeGames{err: errors.New("db down")}, fakeStates{})
	rec, _ = do(t, h, http.MethodGet, "/api/games", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminRefresh(t *testing.T) {
	feed := &fakeFeed{report: services.RefreshReport{
		Pairs: []services.PairResult{{Game: "genshin", Language: "en", Refreshed: true, Active: 2}},
	}}
	h := newTestServer(feed, fakeGames{}, fakeStates{})

	t.Run("no token", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/api/admin/refresh", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing token", body.Message)
	})

	t.Run("expired token", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/api/admin/refresh", token(t, -time.Minute))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, common.ErrTokenExpired.Error(), body.Message)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/api/admin/refresh", "not.a.jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, common.ErrInvalidToken.Error(), body.Message)
	})

	t.Run("ok", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/api/admin/refresh", token(t, time.Minute))
		require.Equal(t, http.StatusOK, rec.Code)

		var report services.RefreshReport
		require.NoError(t, json.Unmarshal(body.Data, &report))
		assert.Equal(t, feed.report.Pairs, report.Pairs)
	})

	t.Run("sweep could not start", func(t *testing.T) {
		feed.report.Error = "db down"
		rec, body := do(t, h, http.MethodPost, "/api/admin/refresh", token(t, time.Minute))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "db down", body.Message)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec, _ := do(t, h, http.MethodGet, "/api/admin/refresh", token(t, time.Minute))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestAdminForce(t *testing.T) {
	feed := &fakeFeed{}
	h := newTestServer(feed, fakeGames{}, fakeStates{})
	tok := token(t, time.Minute)

	rec, _ := do(t, h, http.MethodPost, "/api/admin/games/Genshin/force", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"genshin"}, feed.forced)

	rec, _ = do(t, h, http.MethodPost, "/api/admin/games/tetris/force", tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	feed.err = errors.New("db down")
	rec, _ = do(t, h, http.MethodPost, "/api/admin/games/genshin/force", tok)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOpsEndpoints(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	states := fakeStates{states: []models.RefreshState{{Game: "genshin", Language: "en", LastRefreshAt: &at, LastRefreshSucceeded: true}}}
	h := newTestServer(&fakeFeed{}, fakeGames{}, states)

	rec, body := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK"}`, string(body.Data))

	rec, body = do(t, h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Cache         cache.Stats           `json:"cache"`
		RefreshStates []models.RefreshState `json:"refresh_states"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, uint64(3), data.Cache.Hits)
	require.Len(t, data.RefreshStates, 1)
	assert.True(t, data.RefreshStates[0].LastRefreshAt.Equal(at))

	h = newTestServer(&fakeFeed{}, fakeGames{}, fakeStates{err: errors.New("db down")})
	rec, body = do(t, h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(string(body.Data), "db down"))

	rec, body = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", body.Message)
}

func TestRun_StopsOnCancel(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	s := NewHTTPServer(addr, Deps{Feed: &fakeFeed{}, Games: fakeGames{}, States: fakeStates{}, Cache: fakeStats{}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
