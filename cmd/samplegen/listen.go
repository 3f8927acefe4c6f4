package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gosc "github.com/hypebeast/go-osc/osc"
	"github.com/spf13/cobra"

	oscserver "github.com/ekisa-team/samplegen/internal/server/osc"
)

func newListenCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print /audio_generated notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return listen(ctx, cmd, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9000", "Address to receive notifications on")

	return cmd
}

func listen(ctx context.Context, cmd *cobra.Command, addr string) error {
	out := cmd.OutOrStdout()

	d := oscserver.NewDispatcher(nil)
	d.Handle(oscserver.AddressAudioGenerated, func(msg *gosc.Message) {
		for _, arg := range msg.Arguments {
			fmt.Fprintln(out, arg)
		}
	})

	return oscserver.NewServer(addr, d, nil).ListenAndServe(ctx)
}
