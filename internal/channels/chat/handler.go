// Package chat is the synchronous-request adapter: JSON in, JSON out,
// with an audio rendering of the reply alongside the text.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mitai-health/relay/internal/artifacts"
	"github.com/mitai-health/relay/internal/channels"
	"github.com/mitai-health/relay/internal/observability/metrics"
	"github.com/mitai-health/relay/internal/synthesis"
	"github.com/mitai-health/relay/pkg/logging"
)

// Synthesizer runs the two-stage response pipeline.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, speakerName string) (string, error)
}

// SpeechBridge renders reply text into a stored audio artifact.
type SpeechBridge interface {
	TextToSpeech(ctx context.Context, text, name string) (artifacts.Ref, error)
}

// Handler serves POST /chat.
type Handler struct {
	synth   Synthesizer
	bridge  SpeechBridge
	metrics *metrics.ChannelMetrics
	logger  *logging.Logger
}

func NewHandler(synth Synthesizer, bridge SpeechBridge, m *metrics.ChannelMetrics, logger *logging.Logger) *Handler {
	if synth == nil {
		panic("chat: synthesizer cannot be nil")
	}
	if bridge == nil {
		panic("chat: speech bridge cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{synth: synth, bridge: bridge, metrics: m, logger: logger}
}

type chatRequest struct {
	Query string `json:"query"`
	Name  string `json:"name,omitempty"`
}

type chatResponse struct {
	MITAI     string `json:"MITAI"`
	AudioPath string `json:"audio_path"`
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if strings.TrimSpace(req.Query) == "" {
		h.metrics.ObserveRequest("chat", "missing_query")
		h.logger.Warn("chat: rejected request", "error", channels.ErrMissingQuery)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No query provided"})
		return
	}

	reply, err := h.synth.Synthesize(r.Context(), req.Query, req.Name)
	if err != nil {
		h.metrics.ObserveRequest("chat", "error")
		h.logger.Error("chat: synthesis failed", "error", err)
		writeJSON(w, upstreamStatus(err), map[string]string{"error": "Failed to generate response"})
		return
	}

	ref, err := h.bridge.TextToSpeech(r.Context(), reply, "reply.wav")
	if err != nil {
		h.metrics.ObserveRequest("chat", "error")
		h.logger.Error("chat: audio rendering failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to render audio"})
		return
	}

	h.metrics.ObserveRequest("chat", "ok")
	writeJSON(w, http.StatusOK, chatResponse{MITAI: reply, AudioPath: ref.URL})
}

func upstreamStatus(err error) int {
	if errors.Is(err, synthesis.ErrUpstreamTimeout) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
