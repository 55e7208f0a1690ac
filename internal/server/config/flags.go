package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/flagx"
)

// parseFlags overlays short command-line flags:
//
//	-a string   gRPC bind address
//	-l string   HTTP bind address
//	-d string   PostgreSQL DSN
//	-s string   admin token secret
//	-t int      admin token validity, minutes
//	-k string   cache backend (memory|redis)
//	-r string   Redis URL
//	-v string   log level
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-l", "-d", "-s", "-t", "-k", "-r", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.GRPCAddr, "a", config.GRPCAddr, "gRPC address")
	fs.StringVar(&config.HTTPAddr, "l", config.HTTPAddr, "HTTP address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "admin token secret")
	validity := fs.Int("t", int(config.AdminTokenValidity.Minutes()), "admin token validity (in minutes)")
	fs.StringVar(&config.CacheBackend, "k", config.CacheBackend, "cache backend: memory or redis")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "redis URL")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AdminTokenValidity = time.Duration(*validity) * time.Minute
	return nil
}
