package osc

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	gosc "github.com/hypebeast/go-osc/osc"

	"github.com/ekisa-team/samplegen/internal/generation"
)

// Control protocol addresses.
const (
	AddressGenerate       = "/generate"
	AddressCancel         = "/cancel"
	AddressAudioGenerated = "/audio_generated"
)

// RegisterControl wires the inbound control messages to the admission
// queue and the cancellation signal.
func RegisterControl(d *Dispatcher, queue *generation.Queue, cancel *generation.CancelSignal, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	d.Handle(AddressGenerate, func(msg *gosc.Message) {
		req, err := ParseGenerate(msg)
		if err != nil {
			messagesTotal.WithLabelValues(AddressGenerate, resultMalformed).Inc()
			logger.Warn("Dropping malformed generate command", "arguments", len(msg.Arguments), "error", err)
			return
		}

		if !queue.Push(req) {
			messagesTotal.WithLabelValues(AddressGenerate, resultDropped).Inc()
			logger.Warn("Dropping generate command, queue is closed", "request_id", req.ID)
			return
		}

		messagesTotal.WithLabelValues(AddressGenerate, resultAccepted).Inc()
		logger.Info("Request queued",
			"request_id", req.ID,
			"prompt", req.Prompt,
			"duration_seconds", req.DurationSeconds,
			"model_id", req.ModelID,
			"queue_depth", queue.Len())
	})

	d.Handle(AddressCancel, func(_ *gosc.Message) {
		messagesTotal.WithLabelValues(AddressCancel, resultAccepted).Inc()
		cancel.Signal()
		logger.Info("Cancellation requested")
	})
}

// ParseGenerate converts a /generate message into a request.
// Arguments are (prompt string, duration number, modelId string); extras are ignored.
func ParseGenerate(msg *gosc.Message) (generation.Request, error) {
	if len(msg.Arguments) < 3 {
		return generation.Request{}, fmt.Errorf("%w: expected 3 arguments, got %d", generation.ErrMalformedCommand, len(msg.Arguments))
	}

	prompt, ok := msg.Arguments[0].(string)
	if !ok {
		return generation.Request{}, fmt.Errorf("%w: prompt must be a string, got %T", generation.ErrMalformedCommand, msg.Arguments[0])
	}

	duration, err := asSeconds(msg.Arguments[1])
	if err != nil {
		return generation.Request{}, err
	}

	modelID, ok := msg.Arguments[2].(string)
	if !ok {
		return generation.Request{}, fmt.Errorf("%w: model id must be a string, got %T", generation.ErrMalformedCommand, msg.Arguments[2])
	}

	return generation.NewRequest(prompt, duration, modelID)
}

func asSeconds(v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: duration %q is not a number", generation.ErrMalformedCommand, x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: duration must be a number, got %T", generation.ErrMalformedCommand, v)
	}
}
