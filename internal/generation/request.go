package generation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request is one unit of generation work. It is immutable once enqueued.
type Request struct {
	ID              string
	Prompt          string
	DurationSeconds float64
	ModelID         string
	ReceivedAt      time.Time
}

// NewRequest validates the fields and stamps a new request id.
func NewRequest(prompt string, durationSeconds float64, modelID string) (Request, error) {
	prompt = strings.TrimSpace(prompt)
	modelID = strings.TrimSpace(modelID)

	switch {
	case prompt == "":
		return Request{}, fmt.Errorf("%w: empty prompt", ErrMalformedCommand)
	case modelID == "":
		return Request{}, fmt.Errorf("%w: empty model id", ErrMalformedCommand)
	case math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) || durationSeconds <= 0:
		return Request{}, fmt.Errorf("%w: duration must be a positive number, got %v", ErrMalformedCommand, durationSeconds)
	}

	return Request{
		ID:              uuid.NewString(),
		Prompt:          prompt,
		DurationSeconds: durationSeconds,
		ModelID:         modelID,
		ReceivedAt:      time.Now(),
	}, nil
}

// batch returns the prompts processed for this request.
func (r Request) batch() []string {
	return []string{r.Prompt}
}
