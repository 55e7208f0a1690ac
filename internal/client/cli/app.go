// Package cli implements the operator command line: minting admin tokens,
// reading a game's feed and triggering refresh sweeps over gRPC.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/client/client"
	"github.com/dmitrijs2005/annfeed/internal/client/config"
	"github.com/dmitrijs2005/annfeed/internal/server/auth"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
	"github.com/dmitrijs2005/annfeed/internal/server/services"
)

var ErrUsage = errors.New("usage")

const usage = `Usage: annfeed-cli [-a addr] [-w seconds] [-c file] <command> [args]

Commands:
  token [-subject name] [-validity 24h]   mint an admin token (prompts for the secret)
  get [-force] <game> <language>          print active announcements
  refresh                                 refresh every enabled game (admin)
  games                                   list enabled games
  ping                                    check the server is reachable

Admin commands read the token from ANNFEED_TOKEN.
`

// FeedClient is the part of client.GRPCClient the commands use.
type FeedClient interface {
	GetAnnouncements(ctx context.Context, game, language string, force bool) ([]models.AnnouncementView, error)
	RefreshAll(ctx context.Context) (services.RefreshReport, error)
	ListGames(ctx context.Context) ([]models.Game, error)
	Ping(ctx context.Context) error
	Close() error
}

type App struct {
	config    *config.Config
	out       io.Writer
	newClient func(addr, token string) (FeedClient, error)
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		out:    os.Stdout,
		newClient: func(addr, token string) (FeedClient, error) {
			return client.NewFeedClient(addr, token)
		},
	}
}

// commandArgs drops the global flags (and their values) that config
// already consumed, returning the command and its arguments.
func commandArgs(args []string) []string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		name, _, hasValue := strings.Cut(a, "=")
		if !slices.Contains(config.GlobalFlags, name) {
			return args[i:]
		}
		if !hasValue {
			i++
		}
	}
	return nil
}

// Run executes the command found in args (normally os.Args[1:]).
func (a *App) Run(ctx context.Context, args []string) error {
	args = commandArgs(args)
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "token":
		return a.token(rest)
	case "get":
		return a.withClient(ctx, func(ctx context.Context, c FeedClient) error { return a.get(ctx, c, rest) })
	case "refresh":
		return a.withClient(ctx, a.refresh)
	case "games":
		return a.withClient(ctx, a.games)
	case "ping":
		return a.withClient(ctx, func(ctx context.Context, c FeedClient) error {
			if err := c.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "OK")
			return nil
		})
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprintf(a.out, "unknown command %q\n\n%s", cmd, usage)
		return ErrUsage
	}
}

func (a *App) withClient(ctx context.Context, fn func(context.Context, FeedClient) error) error {
	c, err := a.newClient(a.config.ServerEndpointAddr, a.config.AccessToken)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()
	return fn(ctx, c)
}

func (a *App) token(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(a.out)
	subject := fs.String("subject", "operator", "token subject")
	validity := fs.Duration("validity", 24*time.Hour, "token validity")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret, err := GetSecret(a.out, "Server secret: ")
	if err != nil {
		return err
	}
	if len(secret) == 0 {
		return errors.New("empty secret")
	}

	tok, err := auth.GenerateToken(*subject, secret, *validity)
	clear(secret)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, tok)
	return nil
}

func (a *App) get(ctx context.Context, c FeedClient, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(a.out)
	force := fs.Bool("force", false, "refresh from the publisher first (admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(a.out, "Usage: get [-force] <game> <language>")
		return ErrUsage
	}

	views, err := c.GetAnnouncements(ctx, fs.Arg(0), fs.Arg(1), *force)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTART\tEND\tTITLE")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.OfficialID, v.Category, orDash(v.StartTime), orDash(v.EndTime), v.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d active\n", len(views))
	return nil
}

func (a *App) refresh(ctx context.Context, c FeedClient) error {
	report, err := c.RefreshAll(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GAME\tLANGUAGE\tSTATUS\tACTIVE")
	for _, p := range report.Pairs {
		st := "ok"
		if !p.Refreshed {
			st = "failed: " + p.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.Game, p.Language, st, p.Active)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d pairs, %d failed, took %s\n",
		len(report.Pairs), report.Failed(), report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return nil
}

func (a *App) games(ctx context.Context, c FeedClient) error {
	games, err := c.ListGames(ctx)
	if err != nil {
		return err
	}
	for _, g := range games {
		fmt.Fprintf(a.out, "%s\t%s\n", g.ID, g.Name)
	}
	return nil
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
