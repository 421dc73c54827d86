package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/tablehost/internal/cache"
	"github.com/jason-s-yu/tablehost/internal/database"
	"github.com/jason-s-yu/tablehost/internal/historian"
	"github.com/spf13/cobra"
)

// HistorianOptions holds flags for the historian command.
type HistorianOptions struct {
	*RootOptions
	BatchSize  int
	FlushDelay time.Duration
	Inactivity time.Duration
}

// NewHistorianCommand creates the historian command.
func NewHistorianCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistorianOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "historian",
		Short: "Copy published table events from Redis into Postgres",
		Long: `Pop the event records hosts publish to HISTORIAN_QUEUE_NAME and store
them in Postgres, marking sessions abandoned once they go quiet.

Requires REDIS_ADDR and DATABASE_URL (or the POSTGRES_* variables).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistorian(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.BatchSize, "batch", 20, "records per transaction")
	cmd.Flags().DurationVar(&opts.FlushDelay, "flush", 500*time.Millisecond, "longest a partial batch waits")
	cmd.Flags().DurationVar(&opts.Inactivity, "inactivity", 10*time.Minute, "silence before a session is marked abandoned")

	return cmd
}

func runHistorian(ctx context.Context, opts *HistorianOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	connStr := opts.Config.DatabaseURL
	if connStr == "" {
		connStr = database.ConnectionString()
	}
	pool, err := database.Connect(ctx, connStr)
	if err != nil {
		return fmt.Errorf("historian needs Postgres: %w", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	svc := historian.New(rdb, pool, historian.Options{
		BatchSize:  opts.BatchSize,
		FlushDelay: opts.FlushDelay,
		Inactivity: opts.Inactivity,
		Logger:     opts.Logger,
	})
	return svc.Run(ctx)
}
