package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/flagx"
)

// GlobalFlags are the flags consumed here; the CLI skips them when
// locating its command.
var GlobalFlags = []string{"-a", "-w", "-c", "-config"}

// parseFlags populates selected Config fields from command-line flags:
//
//	-a string   address and port of the feed server
//	-w int      request timeout (in seconds)
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	timeout := fs.Int("w", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
	return nil
}
