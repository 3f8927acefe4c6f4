package backendtest

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ekisa-team/samplegen/internal/audio"
	"github.com/ekisa-team/samplegen/internal/backend"
	"github.com/go-chi/chi/v5"
)

// GenerateCall is a request received by a ModelServer.
type GenerateCall struct {
	Model    string         `json:"-"`
	Prompt   string         `json:"prompt"`
	Duration float64        `json:"duration"`
	Params   map[string]any `json:"params"`
}

// ModelServer mimics the audiocraft model server protocol.
type ModelServer struct {
	// Clip is returned for every generate call.
	Clip *audio.Buffer
	// Unhealthy keeps /health failing.
	Unhealthy bool

	mu    sync.Mutex
	calls []GenerateCall
}

// Handler returns the HTTP handler for one spawned server.
func (m *ModelServer) Handler(cfg backend.ServerConfig) http.Handler {
	model := ModelArg(cfg)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if m.Unhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		var call GenerateCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		call.Model = model

		m.mu.Lock()
		m.calls = append(m.calls, call)
		m.mu.Unlock()

		data, err := audio.MarshalWAV(m.Clip)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(data)
	})
	return r
}

// Calls returns the generate calls received so far.
func (m *ModelServer) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateCall(nil), m.calls...)
}

// Tone returns a short mono test clip.
func Tone(seconds float64) *audio.Buffer {
	const rate = 8000
	n := int(seconds * rate)
	buf := &audio.Buffer{Samples: make([]float32, n), SampleRate: rate, Channels: 1}
	for i := range buf.Samples {
		if (i/20)%2 == 0 {
			buf.Samples[i] = 0.25
		} else {
			buf.Samples[i] = -0.25
		}
	}
	return buf
}
