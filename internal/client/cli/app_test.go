package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/annfeed/internal/client/config"
	"github.com/dmitrijs2005/annfeed/internal/server/auth"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
	"github.com/dmitrijs2005/annfeed/internal/server/services"
)

type fakeClient struct {
	game, language string
	force          bool
	closed         bool
	report         services.RefreshReport
	err            error
}

func (f *fakeClient) GetAnnouncements(ctx context.Context, game, language string, force bool) ([]models.AnnouncementView, error) {
	f.game, f.language, f.force = game, language, force
	if f.err != nil {
		return nil, f.err
	}
	start, end := "2024-03-01 00:00:00", "2024-03-20 00:00:00"
	return []models.AnnouncementView{
		{OfficialID: "A1", Title: "Spring Event", StartTime: &start, EndTime: &end, Category: models.CategoryEvent},
		{OfficialID: "A2", Title: "Banner", EndTime: &end, Category: models.CategoryGacha},
	}, nil
}

func (f *fakeClient) RefreshAll(ctx context.Context) (services.RefreshReport, error) {
	return f.report, f.err
}

func (f *fakeClient) ListGames(ctx context.Context) ([]models.Game, error) {
	return []models.Game{{ID: "genshin", Name: "Genshin Impact"}, {ID: "wuthering", Name: "Wuthering Waves"}}, f.err
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.err }

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func newTestApp(fc *fakeClient) (*App, *bytes.Buffer, *string) {
	var out bytes.Buffer
	var token string
	cfg := &config.Config{ServerEndpointAddr: "x:1", RequestTimeout: time.Second, AccessToken: "tok"}
	return &App{
		config: cfg,
		out:    &out,
		newClient: func(addr, tok string) (FeedClient, error) {
			token = tok
			return fc, nil
		},
	}, &out, &token
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"get", "genshin", "en"}, []string{"get", "genshin", "en"}},
		{[]string{"-a", "h:1", "-c", "f.json", "games"}, []string{"games"}},
		{[]string{"-w=5", "-config=x", "get", "-force", "a", "b"}, []string{"get", "-force", "a", "b"}},
		{[]string{"-a", "h:1"}, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, commandArgs(tt.in), strings.Join(tt.in, " "))
	}
}

func TestRun_Get(t *testing.T) {
	fc := &fakeClient{}
	app, out, token := newTestApp(fc)

	require.NoError(t, app.Run(context.Background(), []string{"-a", "x:1", "get", "-force", "genshin", "zh-Hans"}))

	assert.Equal(t, "genshin", fc.game)
	assert.Equal(t, "zh-Hans", fc.language)
	assert.True(t, fc.force)
	assert.True(t, fc.closed)
	assert.Equal(t, "tok", *token)

	s := out.String()
	assert.Contains(t, s, "Spring Event")
	assert.Contains(t, s, "2024-03-01 00:00:00")
	assert.Contains(t, s, "2 active")
	lines := strings.Split(strings.TrimSpace(s), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[2], "-")
}

func TestRun_GetUsage(t *testing.T) {
	app, _, _ := newTestApp(&fakeClient{})
	assert.ErrorIs(t, app.Run(context.Background(), []string{"get", "genshin"}), ErrUsage)
}

func TestRun_Refresh(t *testing.T) {
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	fc := &fakeClient{report: services.RefreshReport{
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Pairs: []services.PairResult{
			{Game: "genshin", Language: "en", Refreshed: true, Active: 3},
			{Game: "genshin", Language: "ja", Error: "fetch failed"},
		},
	}}
	app, out, _ := newTestApp(fc)

	require.NoError(t, app.Run(context.Background(), []string{"refresh"}))
	assert.Contains(t, out.String(), "failed: fetch failed")
	assert.Contains(t, out.String(), "2 pairs, 1 failed, took 1.5s")
}

func TestRun_GamesAndPing(t *testing.T) {
	fc := &fakeClient{}
	app, out, _ := newTestApp(fc)

	require.NoError(t, app.Run(context.Background(), []string{"games"}))
	assert.Equal(t, "genshin\tGenshin Impact\nwuthering\tWuthering Waves\n", out.String())

	out.Reset()
	require.NoError(t, app.Run(context.Background(), []string{"ping"}))
	assert.Equal(t, "OK\n", out.String())

	fc.err = errors.New("server unavailable")
	assert.EqualError(t, app.Run(context.Background(), []string{"ping"}), "server unavailable")
}

func TestRun_UnknownAndEmpty(t *testing.T) {
	app, out, _ := newTestApp(&fakeClient{})

	assert.ErrorIs(t, app.Run(context.Background(), nil), ErrUsage)
	assert.Contains(t, out.String(), "Usage:")

	out.Reset()
	assert.ErrorIs(t, app.Run(context.Background(), []string{"frobnicate"}), ErrUsage)
	assert.Contains(t, out.String(), `unknown command "frobnicate"`)

	assert.NoError(t, app.Run(context.Background(), []string{"help"}))
}

func TestRun_Token(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }

	app, out, _ := newTestApp(&fakeClient{})
	require.NoError(t, app.Run(context.Background(), []string{"token", "-subject", "alice", "-validity", "1h"}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	tok := lines[len(lines)-1]

	sub, err := auth.VerifyAdminToken(tok, []byte("s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestRun_TokenErrors(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	app, _, _ := newTestApp(&fakeClient{})

	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }
	assert.EqualError(t, app.Run(context.Background(), []string{"token"}), "not a terminal")

	readPassword = func(int) ([]byte, error) { return []byte{}, nil }
	assert.EqualError(t, app.Run(context.Background(), []string{"token"}), "empty secret")
}
