// Package cli wires the host and guest roles into a command line tool.
package cli

import (
	"github.com/jason-s-yu/tablehost/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the process configuration shared by
// every subcommand.
type RootOptions struct {
	Verbose bool

	Config config.Config
	Logger *logrus.Logger
}

// NewRootCommand creates the tablehost command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tablehost",
		Short: "Host or join a dice-bluffing or tile-rummy table",
		Long: `tablehost runs one side of a peer-hosted table game.

The host keeps the authoritative game state and listens for guests over
websockets. Guests mirror that state and send their moves to the host.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.Config = cfg
			opts.Logger = logrus.New()
			opts.Logger.SetOutput(cmd.ErrOrStderr())
			opts.Logger.SetLevel(cfg.LogLevel)
			if opts.Verbose {
				opts.Logger.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewHostCommand(opts))
	cmd.AddCommand(NewJoinCommand(opts))
	cmd.AddCommand(NewHistorianCommand(opts))

	return cmd
}
