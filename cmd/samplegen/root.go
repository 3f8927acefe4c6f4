package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/samplegen/internal/env"
	"github.com/ekisa-team/samplegen/internal/envvar"
	"github.com/ekisa-team/samplegen/internal/logger"
)

type rootOptions struct {
	logLevel string
	logFile  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "samplegen",
		Short:        "OSC-controlled audio sample generator",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(newLogger(opts))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", os.Getenv(envvar.SamplegenLogLevel), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Also write JSON logs to this rotating file")

	cmd.AddCommand(newServeCmd(), newSendCmd(), newListenCmd())
	return cmd
}

func newLogger(opts *rootOptions) *slog.Logger {
	var logOpts []logger.Option
	if opts.logLevel != "" {
		logOpts = append(logOpts, logger.WithLevel(logger.ParseLevel(opts.logLevel)))
	}
	if opts.logFile != "" {
		logOpts = append(logOpts, logger.WithLogToFile(true), logger.WithLogFile(opts.logFile))
	}
	return logger.New(env.FromEnv(), logOpts...)
}
