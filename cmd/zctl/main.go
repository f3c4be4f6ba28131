package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/erazemk/zapuscina/internal/airtable"
	"github.com/erazemk/zapuscina/internal/assist"
	"github.com/erazemk/zapuscina/internal/auth"
	"github.com/erazemk/zapuscina/internal/config"
	"github.com/erazemk/zapuscina/internal/imagestore"
	"github.com/erazemk/zapuscina/internal/imaging"
	"github.com/erazemk/zapuscina/internal/inventory"
	"github.com/erazemk/zapuscina/internal/logging"
	"github.com/erazemk/zapuscina/internal/repository"
	"github.com/erazemk/zapuscina/internal/session"
)

const usage = `Usage: zctl <command> [flags]

Staff commands:
  login -u <user>               sign in (password is read from ZCTL_PASSWORD or stdin)
  logout                        sign out and forget the saved session
  whoami                        show the signed-in user
  list [-filter F] [-q text]    list your items (F: All, Apparel, ..., Flagged)
  show <id>                     show one item
  add [item flags]              create an item
  edit <id> [item flags]        change an item
  delete <id>                   delete an item
  tag <id> [-add t] [-rm t]     edit an item's tags
  seed [-n 10] [-seed 1]        create demo items

Bidder commands:
  bidder -phone <number> [-name n]   sign in as a bidder
  auctions                           list auctions
  bid <item id>                      place the next bid
  watch <item id>...                 follow auctions until interrupted

Run "zctl <command> -h" for a command's flags.
`

type app struct {
	cfg      *config.Config
	sessions *session.FileStore
	remote   *auth.Remote
	ctrl     *inventory.Controller
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "-help" || os.Args[1] == "help" {
		fmt.Fprint(os.Stdout, usage)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	level := cfg.LogLevel
	if level == "info" {
		level = "warn"
	}
	closeLog, err := logging.Setup(logging.Options{Level: level, Path: cfg.LogPath})
	if err != nil {
		fatal(err)
	}
	defer closeLog()

	a, err := newApp(cfg)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	var run func(context.Context, []string) error
	switch cmd {
	case "login":
		run = a.login
	case "logout":
		run = a.logout
	case "whoami":
		run = a.whoami
	case "list":
		run = a.list
	case "show":
		run = a.show
	case "add":
		run = a.add
	case "edit":
		run = a.edit
	case "delete":
		run = a.delete
	case "tag":
		run = a.tag
	case "seed":
		run = a.seed
	case "bidder":
		run = a.bidder
	case "auctions":
		run = a.auctions
	case "bid":
		run = a.bid
	case "watch":
		run = a.watch
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err := run(ctx, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		closeLog()
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func newApp(cfg *config.Config) (*app, error) {
	path := cfg.Client.SessionPath
	if path == "" {
		p, err := session.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	a := &app{
		cfg:      cfg,
		sessions: &session.FileStore{Path: path},
		remote:   auth.NewRemote(cfg.Client.ServerURL),
	}

	var repo inventory.Repository
	if cfg.Records.Configured() {
		r, err := newRepository(cfg)
		if err != nil {
			return nil, err
		}
		repo = r
	}
	a.ctrl = inventory.New(a.sessions, a.remote, repo, imaging.New(), assist.New(cfg.Client.ServerURL))
	return a, nil
}

func newRepository(cfg *config.Config) (*repository.Repository, error) {
	client := airtable.New(cfg.Records.Token, cfg.Records.BaseID, cfg.Records.Table)
	client.BaseURL = cfg.Records.URL

	var uploader imagestore.Uploader
	if cfg.Images.ImgBBKey != "" {
		uploader = imagestore.NewImgBB(cfg.Images.ImgBBKey)
	}
	strategy, err := imagestore.New(cfg.Images.Strategy, uploader)
	if err != nil {
		return nil, err
	}
	if c, ok := strategy.(*imagestore.Chunked); ok {
		c.ChunkSize = cfg.Images.ChunkSize
		c.MaxChunks = cfg.Images.MaxChunks
	}
	return repository.New(client, strategy), nil
}

// boot restores the saved session. Commands that touch items need the record
// store, which is configured locally.
func (a *app) boot(ctx context.Context) error {
	if a.ctrl.Repo == nil {
		return errors.New("record store is not configured: set AIRTABLE_TOKEN, AIRTABLE_BASE_ID and AIRTABLE_TABLE")
	}
	if err := a.ctrl.Boot(ctx); err != nil {
		return err
	}
	if a.ctrl.Session() == nil {
		return errors.New("not signed in, run: zctl login -u <user>")
	}
	if err := a.ctrl.LoadError(); err != nil {
		return err
	}
	return nil
}

func newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stdout, "Usage: zctl %s\n", synopsis)
		var hasFlags bool
		fs.VisitAll(func(*flag.Flag) { hasFlags = true })
		if hasFlags {
			fmt.Fprintln(os.Stdout, "\nFlags:")
			fs.PrintDefaults()
		}
	}
	return fs
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}
