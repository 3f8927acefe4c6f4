package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/samplegen/internal/config"
	oscserver "github.com/ekisa-team/samplegen/internal/server/osc"
)

type sendOptions struct {
	host string
	port int
}

func newSendCmd() *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send control messages to a running daemon",
	}
	cmd.PersistentFlags().StringVar(&opts.host, "host", "127.0.0.1", "Daemon host")
	cmd.PersistentFlags().IntVar(&opts.port, "port", 8000, "Daemon OSC port")

	cmd.AddCommand(&cobra.Command{
		Use:   "generate <prompt> <duration> [model]",
		Short: "Queue a generation request",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", args[1], err)
			}
			modelID := config.DefaultModel
			if len(args) == 3 {
				modelID = args[2]
			}

			client := oscserver.NewClient(opts.host, opts.port)
			if err := client.Generate(cmd.Context(), args[0], duration, modelID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", oscserver.AddressGenerate, client.Target())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel",
		Short: "Drop the batch of the next request to start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := oscserver.NewClient(opts.host, opts.port)
			if err := client.Cancel(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", oscserver.AddressCancel, client.Target())
			return nil
		},
	})

	return cmd
}
