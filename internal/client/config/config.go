// Package config holds runtime settings for the operator CLI.
package config

import "time"

// Config fields:
//   - ServerEndpointAddr: host:port of the feed gRPC endpoint.
//   - RequestTimeout: deadline applied to every RPC.
//   - AccessToken: admin token sent with privileged calls. Read from
//     ANNFEED_TOKEN only, never from files or flags.
type Config struct {
	ServerEndpointAddr string        `env:"ADDR"`
	RequestTimeout     time.Duration `env:"TIMEOUT"`
	AccessToken        string        `env:"TOKEN"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 2 * time.Minute
}

// LoadConfig applies defaults, then ANNFEED_ environment variables, a JSON
// file (if -c/-config is given) and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
