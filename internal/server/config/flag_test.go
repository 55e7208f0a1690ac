package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-l", ":8081", "-d", "db", "-s", "secret",
			"-t", "90", "-k", "redis", "-r", "redis://cache:6379/1", "-v", "debug",
		},
			expected: &Config{
				GRPCAddr:           "127.0.0.1:9090",
				HTTPAddr:           ":8081",
				DatabaseDSN:        "db",
				SecretKey:          "secret",
				AdminTokenValidity: 90 * time.Minute,
				CacheBackend:       "redis",
				RedisURL:           "redis://cache:6379/1",
				LogLevel:           "debug",
			}},
		{name: "unrelated flags ignored", args: []string{"cmd", "-config", "x.json", "-a", ":1"},
			expected: &Config{GRPCAddr: ":1"}},
		{name: "bad validity", args: []string{"cmd", "-t", "soon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}
			err := parseFlags(config)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(config, tt.expected))
		})
	}
}
