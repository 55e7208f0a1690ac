package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("ANNFEED_GRPC_ADDR", "127.0.0.1:7000")
	t.Setenv("ANNFEED_FETCH_TIMEOUT", "3s")
	t.Setenv("ANNFEED_REFRESH_LANGUAGES", "en,ja")
	t.Setenv("ANNFEED_ARCHIVE_ENABLED", "true")
	t.Setenv("ANNFEED_REFRESH_CONCURRENCY", "8")

	var c Config
	c.LoadDefaults()
	require.NoError(t, parseEnv(&c, ""))

	assert.Equal(t, "127.0.0.1:7000", c.GRPCAddr)
	assert.Equal(t, 3*time.Second, c.FetchTimeout)
	assert.Equal(t, []string{"en", "ja"}, c.RefreshLanguages)
	assert.True(t, c.ArchiveEnabled)
	assert.Equal(t, 8, c.RefreshConcurrency)
	// untouched
	assert.Equal(t, ":8080", c.HTTPAddr)
}

func TestParseEnv_DotenvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ANNFEED_S3_BUCKET=from-file\nANNFEED_HTTP_ADDR=file:1\n"), 0o600))

	// process environment wins over the file
	t.Setenv("ANNFEED_HTTP_ADDR", "env:1")
	t.Cleanup(func() { os.Unsetenv("ANNFEED_S3_BUCKET") })

	var c Config
	c.LoadDefaults()
	require.NoError(t, parseEnv(&c, path))

	assert.Equal(t, "from-file", c.S3Bucket)
	assert.Equal(t, "env:1", c.HTTPAddr)
}

func TestParseEnv_MissingDotenvIgnored(t *testing.T) {
	var c Config
	c.LoadDefaults()
	assert.NoError(t, parseEnv(&c, filepath.Join(t.TempDir(), "absent.env")))
}

func TestParseEnv_BadValue(t *testing.T) {
	t.Setenv("ANNFEED_CACHE_TTL", "forever")

	var c Config
	err := parseEnv(&c, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}
