package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/tablehost/internal/cache"
	"github.com/jason-s-yu/tablehost/internal/replica"
	"github.com/jason-s-yu/tablehost/internal/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// sessionTTL bounds how long a saved reconnection hint lives in Redis.
const sessionTTL = 24 * time.Hour

var errHostGone = errors.New("the host closed the connection")

// JoinOptions holds flags for the join command.
type JoinOptions struct {
	*RootOptions
	URL         string
	Name        string
	Avatar      int
	SessionFile string
}

// NewJoinCommand creates the join command.
func NewJoinCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JoinOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Take a seat at a hosted table",
		Long: `Connect to a host and take a seat, or reclaim the seat saved from an
earlier visit to the same host.

Example:
  tablehost join --url ws://10.0.0.4:8080/peer --name Alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "host websocket URL (default HOST_URL)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().IntVar(&opts.Avatar, "avatar", 0, "avatar index")
	cmd.Flags().StringVar(&opts.SessionFile, "session-file", "", "where seats are remembered without Redis (default in the user config dir)")

	return cmd
}

func runJoin(ctx context.Context, opts *JoinOptions, in io.Reader, out io.Writer) error {
	cfg, logger := opts.Config, opts.Logger
	url := opts.URL
	if url == "" {
		url = cfg.HostURL
	}

	store := defaultSessionStore(opts.SessionFile)
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx)
		if err != nil {
			logger.Warnf("saved sessions disabled: %v", err)
		} else {
			defer rdb.Close()
			store = cache.NewSessionStore(rdb, sessionTTL)
		}
	}

	var client *transport.Client
	dial := func(ctx context.Context, peerID string, h transport.Handler) (transport.Sender, error) {
		c, err := transport.Dial(ctx, url, peerID, h, logger)
		if err != nil {
			return nil, err
		}
		client = c
		return c, nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := replica.Connect(ctx, dial, replica.Options{
		Name:   opts.Name,
		Avatar: opts.Avatar,
		Logger: logger,
		Store:  store,
		Key:    replica.SessionKey(url, opts.Name),
	})
	if err != nil {
		return err
	}
	defer client.Close()

	con := newConsole(out)
	con.seat(r)
	con.printf("connected to %s; type help for commands\n", url)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return con.run(gctx, in) })
	g.Go(func() error {
		select {
		case <-client.Done():
			return errHostGone
		case <-gctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

// defaultSessionStore remembers seats in a file so a restarted guest can
// reclaim its seat. Memory is the last resort when no path is usable.
func defaultSessionStore(path string) replica.SessionStore {
	if path == "" {
		p, err := replica.DefaultSessionPath()
		if err != nil {
			return replica.NewMemoryStore()
		}
		path = p
	}
	return replica.NewFileStore(path)
}
