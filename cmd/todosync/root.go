package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/todosync/internal/config"
	"github.com/example/todosync/internal/logging"
)

// app holds what every subcommand needs once the persistent flags have
// been resolved.
type app struct {
	v        *viper.Viper
	cfg      config.Config
	logger   *slog.Logger
	logClose io.Closer
}

func newRootCmd() *cobra.Command {
	rt := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "todosync",
		Short:         "Todo service with realtime synchronisation",
		Long:          "todosync serves the todo HTTP API and the /realtime websocket endpoint, and manages its SQLite database and accounts.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.load(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if rt.logClose != nil {
				_ = rt.logClose.Close()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to a config file (yaml, toml or json)")
	flags.String("dsn", "", "SQLite database path")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	_ = rt.v.BindPFlag("config", flags.Lookup("config"))
	_ = rt.v.BindPFlag("sqlite_dsn", flags.Lookup("dsn"))
	_ = rt.v.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(
		newServeCmd(rt),
		newMigrateCmd(rt),
		newUserCmd(rt),
		newTeamCmd(rt),
		newWatchCmd(rt),
	)
	return rootCmd
}

func (rt *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadWith(rt.v)
	if err != nil {
		return err
	}
	logger, closer := logging.NewLogger(logging.Options{
		Level:     cfg.LogLevel,
		File:      cfg.LogFile,
		MaxSizeMB: cfg.LogMaxSizeMB,
	})
	rt.cfg = cfg
	rt.logger = logger.With("command", cmd.Name())
	rt.logClose = closer
	return nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
