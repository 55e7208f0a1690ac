package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50051", c.GRPCAddr)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, 24*time.Hour, c.AdminTokenValidity)
	assert.Equal(t, 10*time.Second, c.FetchTimeout)
	assert.Equal(t, 12*time.Hour, c.RefreshThreshold)
	assert.Equal(t, time.Hour, c.CacheTTL)
	assert.Equal(t, CacheMemory, c.CacheBackend)
	assert.Equal(t, []string{"zh-Hans", "en", "ja", "zh-Hant"}, c.RefreshLanguages)
	assert.Equal(t, []string{"09:00", "11:10", "16:00", "18:00", "22:00"}, c.ScheduleTimes)
	assert.False(t, c.ArchiveEnabled)

	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.CacheBackend = "memcached" }, wantErr: true},
		{name: "redis without url", mutate: func(c *Config) { c.CacheBackend = CacheRedis; c.RedisURL = "" }, wantErr: true},
		{name: "redis with url", mutate: func(c *Config) { c.CacheBackend = CacheRedis }},
		{name: "bad language", mutate: func(c *Config) { c.RefreshLanguages = []string{"en", "fr"} }, wantErr: true},
		{name: "no languages", mutate: func(c *Config) { c.RefreshLanguages = nil }, wantErr: true},
		{name: "bad schedule time", mutate: func(c *Config) { c.ScheduleTimes = []string{"25:00"} }, wantErr: true},
		{name: "empty schedule", mutate: func(c *Config) { c.ScheduleTimes = nil }},
		{name: "archive without bucket", mutate: func(c *Config) { c.ArchiveEnabled = true; c.S3Bucket = "" }, wantErr: true},
		{name: "short secret", mutate: func(c *Config) { c.SecretKey = "abc" }, wantErr: true},
		{name: "zero concurrency", mutate: func(c *Config) { c.RefreshConcurrency = 0 }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}
	t.Chdir(t.TempDir())

	c, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, c)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, c)
}

func TestLoadConfig_Precedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Chdir(t.TempDir())

	path := writeTempJSON(t, "", "", map[string]any{
		"grpc_addr": "json:1",
		"http_addr": "json:2",
	})
	t.Setenv("ANNFEED_GRPC_ADDR", "env:1")
	t.Setenv("ANNFEED_HTTP_ADDR", "env:2")
	t.Setenv("ANNFEED_DATABASE_DSN", "env-dsn")

	os.Args = []string{"testbin", "-config", path, "-a", "flag:1"}

	c, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "flag:1", c.GRPCAddr)
	assert.Equal(t, "json:2", c.HTTPAddr)
	assert.Equal(t, "env-dsn", c.DatabaseDSN)
}

func TestLoadConfig_Invalid(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Chdir(t.TempDir())
	os.Args = []string{"testbin", "-k", "memcached"}

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
