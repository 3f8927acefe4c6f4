package osc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	gosc "github.com/hypebeast/go-osc/osc"
)

// maxDatagram is the largest UDP payload.
const maxDatagram = 65535

// Server receives OSC datagrams and dispatches them sequentially, so
// messages reach their handlers in arrival order.
type Server struct {
	addr       string
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, dispatcher *Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:       addr,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// ListenAndServe binds the UDP socket and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("osc: listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, conn)
}

// Serve reads from conn until ctx is done. It closes conn.
func (s *Server) Serve(ctx context.Context, conn net.PacketConn) error {
	s.logger.Info("OSC server listening", "addr", conn.LocalAddr().String())

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()
	defer conn.Close()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("OSC server stopped")
				return nil
			}
			return fmt.Errorf("osc: read: %w", err)
		}

		packet, err := parsePacket(buf[:n])
		if err != nil {
			packetErrorsTotal.Inc()
			s.logger.Warn("Dropping unparseable datagram", "from", from.String(), "bytes", n, "error", err)
			continue
		}

		s.dispatcher.Dispatch(packet)
	}
}

// parsePacket decodes a datagram. ParsePacket can panic on truncated input.
func parsePacket(data []byte) (packet gosc.Packet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("osc: malformed packet: %v", r)
		}
	}()
	return gosc.ParsePacket(string(data))
}
