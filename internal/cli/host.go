package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/tablehost/internal/auth"
	"github.com/jason-s-yu/tablehost/internal/authority"
	"github.com/jason-s-yu/tablehost/internal/bot"
	"github.com/jason-s-yu/tablehost/internal/cache"
	"github.com/jason-s-yu/tablehost/internal/config"
	"github.com/jason-s-yu/tablehost/internal/database"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/replica"
	"github.com/jason-s-yu/tablehost/internal/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// HostOptions holds flags for the host command.
type HostOptions struct {
	*RootOptions
	Game     string
	Settings string
	Name     string
	Addr     string
	Bots     int
}

// NewHostCommand creates the host command.
func NewHostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HostOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Open a table and wait for guests",
		Long: `Open a table in the lobby and accept guests on /peer.

Example:
  tablehost host --game dice --bots 2
  tablehost host --game rummy --settings ./rummy.yaml --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Game, "game", string(models.GameDice), "game to run (dice|rummy)")
	cmd.Flags().StringVar(&opts.Settings, "settings", "", "YAML file overriding the lobby defaults")
	cmd.Flags().StringVar(&opts.Name, "name", "Host", "display name for the host seat")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default LISTEN_ADDR)")
	cmd.Flags().IntVar(&opts.Bots, "bots", 0, "bots to seat before guests arrive")

	return cmd
}

func runHost(ctx context.Context, opts *HostOptions, in io.Reader, out io.Writer) error {
	cfg, logger := opts.Config, opts.Logger
	kind := models.GameKind(opts.Game)

	settings := models.DefaultSettings(kind)
	if opts.Settings != "" {
		var err error
		if settings, err = config.LoadSettings(opts.Settings, kind); err != nil {
			return err
		}
	} else if err := settings.Validate(); err != nil {
		return err
	}

	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}
	hostOpts := authority.Options{
		Settings:       settings,
		HostName:       opts.Name,
		Logger:         logger,
		Signer:         signer,
		Suggester:      newSuggester(cfg),
		SuggestTimeout: cfg.SuggesterTimeout,
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx)
		if err != nil {
			logger.Warnf("event log disabled: %v", err)
		} else {
			defer rdb.Close()
			hostOpts.Events = cache.NewEventPublisher(rdb)
		}
	}
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warnf("results archive disabled: %v", err)
		} else {
			defer pool.Close()
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			hostOpts.Results = database.NewArchive(pool)
		}
	}

	a, err := authority.New(hostOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := transport.NewHub(logger, a.HandleEvent)
	a.Attach(hub)

	seat := replica.New(replica.Options{Name: opts.Name, Logger: logger})
	seat.Attach(a.LocalLink(seat.HandleEvent))

	for i := 0; i < opts.Bots; i++ {
		if _, err := a.AddBot(""); err != nil {
			return fmt.Errorf("seating bot %d: %w", i+1, err)
		}
	}

	con := newConsole(out)
	con.seat(seat)
	con.admin(a)

	addr := opts.Addr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	con.printf("table %s open on %s; type help for commands\n", a.ID(), addr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Listen(gctx, addr, nil) })
	g.Go(func() error { return con.run(gctx, in) })

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

func newSigner(cfg config.Config) (*auth.Signer, error) {
	if cfg.KeyPath != "" {
		return auth.LoadSigner(cfg.KeyPath, cfg.TokenTTL)
	}
	return auth.NewSigner(cfg.TokenTTL)
}

func newSuggester(cfg config.Config) bot.Suggester {
	if cfg.SuggesterURL != "" {
		return bot.NewHTTPSuggester(cfg.SuggesterURL)
	}
	return bot.Heuristic{}
}
