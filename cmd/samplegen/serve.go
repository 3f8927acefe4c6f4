package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/samplegen/internal/config"
	"github.com/ekisa-team/samplegen/internal/daemon"
)

type serveOptions struct {
	configPath string
	schemaPath string
	oscAddr    string
	httpAddr   string
	grpcAddr   string
	watch      bool
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the generation daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", filepath.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file (.yaml, .toml or .json)")
	f.StringVar(&opts.schemaPath, "schema", "", "Path to a JSON schema overriding the built-in one")
	f.StringVar(&opts.oscAddr, "osc-addr", "", "OSC listen address (overrides config)")
	f.StringVar(&opts.httpAddr, "http-addr", "", `HTTP ops address, "off" to disable (overrides config)`)
	f.StringVar(&opts.grpcAddr, "grpc-addr", "", `gRPC health address, "off" to disable (overrides config)`)
	f.BoolVar(&opts.watch, "watch", true, "Reload the model catalog and output settings when the config file changes")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *serveOptions) error {
	logger := slog.Default()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	opts.override(cfg)

	d, err := daemon.New(cfg, daemon.WithLogger(logger))
	if err != nil {
		return err
	}

	if opts.watch && fileExists(opts.configPath) {
		watcher, err := config.NewWatcher(opts.configPath, opts.schemaPath, logger, func(next *config.Config, err error) {
			if err != nil {
				logger.Error("Ignoring invalid config change", "error", err)
				return
			}
			opts.override(next)
			d.ApplyConfig(next)
		})
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	logger.Info("Starting samplegen",
		"osc", cfg.OSC.ListenAddr,
		"reply", fmt.Sprintf("%s:%d", cfg.OSC.ReplyHost, cfg.OSC.ReplyPort),
		"http", cfg.Server.HTTPAddr,
		"grpc", cfg.Server.GRPCAddr,
		"output_dir", cfg.ResolveOutputDir())

	return d.Run(ctx)
}

// loadConfig reads the config file. A missing file at the default location
// falls back to built-in defaults; an explicit --config must exist.
func loadConfig(cmd *cobra.Command, opts *serveOptions) (*config.Config, error) {
	cfg, err := config.LoadAndValidate(opts.configPath, opts.schemaPath)
	if err == nil {
		slog.Info("Config loaded successfully", "config", opts.configPath)
		return cfg, nil
	}

	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		slog.Info("No config file found, using defaults", "config", opts.configPath)
		return config.Default(), nil
	}
	return nil, err
}

func (o *serveOptions) override(cfg *config.Config) {
	if o.oscAddr != "" {
		cfg.OSC.ListenAddr = o.oscAddr
	}
	if o.httpAddr != "" {
		cfg.Server.HTTPAddr = o.httpAddr
	}
	if o.grpcAddr != "" {
		cfg.Server.GRPCAddr = o.grpcAddr
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
