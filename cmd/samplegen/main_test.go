package main

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	gosc "github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/samplegen/internal/config"
	oscserver "github.com/ekisa-team/samplegen/internal/server/osc"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func receive(t *testing.T, conn net.PacketConn) *gosc.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 65535)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	packet, err := gosc.ParsePacket(string(buf[:n]))
	require.NoError(t, err)
	return packet.(*gosc.Message)
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "send", "listen"})
}

func TestSendGenerate(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	port := strconv.Itoa(conn.LocalAddr().(*net.UDPAddr).Port)

	out, err := execute(t, "send", "generate", "rain on a tin roof", "2.5", "--port", port)
	require.NoError(t, err)
	assert.Contains(t, out, "sent /generate")

	msg := receive(t, conn)
	assert.Equal(t, oscserver.AddressGenerate, msg.Address)
	assert.Equal(t, []any{"rain on a tin roof", 2.5, config.DefaultModel}, msg.Arguments)
}

func TestSendGenerate_InvalidDuration(t *testing.T) {
	_, err := execute(t, "send", "generate", "rain", "soon", "m")
	assert.Error(t, err)
}

func TestSendCancel(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	port := strconv.Itoa(conn.LocalAddr().(*net.UDPAddr).Port)

	_, err = execute(t, "send", "cancel", "--port", port)
	require.NoError(t, err)
	assert.Equal(t, oscserver.AddressCancel, receive(t, conn).Address)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestListen_PrintsNotifications(t *testing.T) {
	probe, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.LocalAddr().(*net.UDPAddr)
	require.NoError(t, probe.Close())

	out := &syncBuffer{}
	cmd := newListenCmd()
	cmd.SetOut(out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listen(ctx, cmd, addr.String()) }()

	client := oscserver.NewClient("127.0.0.1", addr.Port)
	require.Eventually(t, func() bool {
		_ = client.AudioGenerated(context.Background(), "/tmp/generated_audio/rain.wav")
		return bytes.Contains([]byte(out.String()), []byte("/tmp/generated_audio/rain.wav"))
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not stop")
	}
}

func TestServeOptions_Override(t *testing.T) {
	cfg := config.Default()
	opts := &serveOptions{oscAddr: "127.0.0.1:7000", httpAddr: config.Disabled}
	opts.override(cfg)

	assert.Equal(t, "127.0.0.1:7000", cfg.OSC.ListenAddr)
	assert.Equal(t, config.Disabled, cfg.Server.HTTPAddr)
	assert.Equal(t, config.DefaultGRPCAddr, cfg.Server.GRPCAddr)
}
