// File: cmd/linewire/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// linewire binary: newline-delimited echo server over the event-driven
// core. Positional arguments mirror the config file keys; signals INT,
// TERM and USR1 stop the server gracefully, USR2 logs a stats snapshot.

package main

import (
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/momentics/linewire/control"
	"github.com/momentics/linewire/handler"
	"github.com/momentics/linewire/server"
)

var (
	configPath string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:          "linewire [port [max_connections [thread_count]]]",
		Short:        "Memory-conscious event-driven line-delimited TCP server",
		Args:         cobra.MaximumNArgs(3),
		RunE:         run,
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "key=value config file")
	root.Flags().StringVar(&logLevel, "log-level", "info", "zerolog level (trace..error)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := newLogger(logLevel)

	cfg := control.Default()
	if configPath != "" {
		if err := cfg.LoadFile(configPath, log); err != nil {
			return err
		}
	}
	// Positional arguments override file values.
	if err := cfg.FromArgs(args); err != nil {
		return err
	}

	srv := server.New(cfg,
		server.WithLogger(log),
		server.WithHandler(handler.Echo{Prefix: "echo:"}),
	)
	if err := srv.Start(); err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM, unix.SIGUSR1, unix.SIGUSR2)
	go func() {
		for sig := range sigCh {
			if sig == unix.SIGUSR2 {
				logSnapshot(log, control.Collect(srv))
				continue
			}
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			if err := srv.Stop(); err != nil {
				log.Warn().Err(err).Msg("shutdown reported errors")
			}
			return
		}
	}()

	err := srv.Run()
	log.Info().Msg("server shutdown complete")
	return err
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}

func logSnapshot(log zerolog.Logger, s control.Snapshot) {
	ev := log.Info().
		Int("connections", s.Connections).
		Int64("mem_current", s.MemCurrent).
		Int64("mem_peak", s.MemPeak).
		Int64("mem_limit", s.MemLimit).
		Bool("limit_exceeded", s.LimitExceeded).
		Uint64("process_rss", s.ProcessRSS)
	for size, ps := range s.Pools {
		ev = ev.Interface(poolKey(size), ps)
	}
	ev.Msg("stats snapshot")
}

func poolKey(size int) string {
	switch size {
	case 256:
		return "pool_small"
	case 1024:
		return "pool_medium"
	case 4096:
		return "pool_large"
	}
	return "pool_other"
}
