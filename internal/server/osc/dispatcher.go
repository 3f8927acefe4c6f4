package osc

import (
	"fmt"
	"log/slog"
	"sync"

	gosc "github.com/hypebeast/go-osc/osc"
)

// HandlerFunc handles one inbound message.
type HandlerFunc func(msg *gosc.Message)

// Dispatcher routes messages by exact address match.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Handle registers fn for addr, replacing any previous handler.
func (d *Dispatcher) Handle(addr string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[addr] = fn
}

// Dispatch delivers a packet. Bundle contents are delivered in order,
// messages before nested bundles, without honoring time tags.
func (d *Dispatcher) Dispatch(packet gosc.Packet) {
	switch p := packet.(type) {
	case *gosc.Message:
		d.dispatchMessage(p)
	case *gosc.Bundle:
		for _, msg := range p.Messages {
			d.dispatchMessage(msg)
		}
		for _, b := range p.Bundles {
			d.Dispatch(b)
		}
	default:
		d.logger.Debug("Ignoring unsupported OSC packet", "type", fmt.Sprintf("%T", packet))
	}
}

func (d *Dispatcher) dispatchMessage(msg *gosc.Message) {
	d.mu.RLock()
	fn, ok := d.handlers[msg.Address]
	d.mu.RUnlock()

	if !ok {
		messagesTotal.WithLabelValues("other", resultUnknown).Inc()
		d.logger.Debug("Ignoring message for unknown address", "address", msg.Address)
		return
	}
	fn(msg)
}
