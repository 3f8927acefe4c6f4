package osc

import (
	"context"
	"fmt"
	"net"
	"strconv"

	gosc "github.com/hypebeast/go-osc/osc"
)

// Client sends control protocol messages to a single host and port.
type Client struct {
	client *gosc.Client
	target string
}

// NewClient creates a client for host:port.
func NewClient(host string, port int) *Client {
	return &Client{
		client: gosc.NewClient(host, port),
		target: net.JoinHostPort(host, strconv.Itoa(port)),
	}
}

// Target returns the destination address.
func (c *Client) Target() string { return c.target }

// AudioGenerated announces a finished file. UDP sends do not block, so ctx is
// only checked before sending.
func (c *Client) AudioGenerated(ctx context.Context, path string) error {
	return c.send(ctx, gosc.NewMessage(AddressAudioGenerated, path))
}

// Generate sends a /generate command.
func (c *Client) Generate(ctx context.Context, prompt string, durationSeconds float64, modelID string) error {
	return c.send(ctx, gosc.NewMessage(AddressGenerate, prompt, durationSeconds, modelID))
}

// Cancel sends a /cancel command.
func (c *Client) Cancel(ctx context.Context) error {
	return c.send(ctx, gosc.NewMessage(AddressCancel))
}

func (c *Client) send(ctx context.Context, msg *gosc.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.client.Send(msg); err != nil {
		return fmt.Errorf("osc: send %s to %s: %w", msg.Address, c.target, err)
	}
	return nil
}
