// Package voice is the Exotel voice-callback adapter. Exotel posts a
// form with the call identifier and, after the greeting turn, a URL to
// the caller's recorded utterance; we answer with markup telling the
// provider which audio artifact to play back into the call.
package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mitai-health/relay/internal/artifacts"
	"github.com/mitai-health/relay/internal/channels"
	"github.com/mitai-health/relay/internal/observability/metrics"
	"github.com/mitai-health/relay/internal/speech"
	"github.com/mitai-health/relay/pkg/logging"
)

var voiceTracer = otel.Tracer("mitai.internal.channels.voice")

// DefaultGreeting is used as the utterance for the first callback of a
// call, which carries no recording yet. A deliberate default, not an
// error.
const DefaultGreeting = "Hello!"

// Synthesizer runs the two-stage response pipeline.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, speakerName string) (string, error)
}

// SpeechBridge is the voice adapter's view of the speech I/O bridge.
type SpeechBridge interface {
	TextToSpeech(ctx context.Context, text, name string) (artifacts.Ref, error)
	SpeechToText(ctx context.Context, audio io.Reader) speech.Transcript
}

// Handler serves POST /exotel/voice.
type Handler struct {
	synth         Synthesizer
	bridge        SpeechBridge
	httpClient    *http.Client
	publicBaseURL string
	metrics       *metrics.ChannelMetrics
	logger        *logging.Logger
}

// NewHandler builds the voice adapter. publicBaseURL overrides the
// host derived from the request when building the playback URL;
// httpClient downloads recordings and may be nil.
func NewHandler(synth Synthesizer, bridge SpeechBridge, httpClient *http.Client, publicBaseURL string, m *metrics.ChannelMetrics, logger *logging.Logger) *Handler {
	if synth == nil {
		panic("voice: synthesizer cannot be nil")
	}
	if bridge == nil {
		panic("voice: speech bridge cannot be nil")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		synth:         synth,
		bridge:        bridge,
		httpClient:    httpClient,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		metrics:       m,
		logger:        logger,
	}
}

// HandleCallback handles POST /exotel/voice. Internal failures still
// answer with well-formed markup so the provider does not retry the
// callback.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := voiceTracer.Start(r.Context(), "channels.voice.callback")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		h.logger.Error("voice: failed to parse form", "error", err)
		h.metrics.ObserveRequest("voice", "bad_request")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	callID := strings.TrimSpace(r.FormValue("CallUUID"))
	recordingURL := strings.TrimSpace(r.FormValue("RecordingUrl"))
	span.SetAttributes(
		attribute.String("mitai.call_id", callID),
		attribute.Bool("mitai.has_recording", recordingURL != ""),
	)
	if callID == "" {
		callID = "call"
	}

	userText := DefaultGreeting
	if recordingURL != "" {
		transcript, err := h.transcribeRecording(ctx, recordingURL)
		if err != nil {
			h.logger.Error("voice: recording download failed", "error", err, "call_id", callID)
			h.metrics.ObserveRequest("voice", "error")
			h.writeEmptyResponse(w)
			return
		}
		if !transcript.Intelligible {
			h.logger.Warn("voice: unintelligible recording, forwarding fallback phrase", "call_id", callID)
		}
		userText = transcript.Text
	}

	reply, err := h.synth.Synthesize(ctx, userText, "")
	if err != nil {
		h.logger.Error("voice: synthesis failed", "error", err, "call_id", callID)
		h.metrics.ObserveRequest("voice", "error")
		h.writeEmptyResponse(w)
		return
	}

	ref, err := h.bridge.TextToSpeech(ctx, reply, callID+"_reply.wav")
	if err != nil {
		h.logger.Error("voice: audio rendering failed", "error", err, "call_id", callID)
		h.metrics.ObserveRequest("voice", "error")
		h.writeEmptyResponse(w)
		return
	}

	playURL := ref.URL
	if strings.HasPrefix(playURL, "/") {
		base := h.publicBaseURL
		if base == "" {
			base = channels.BaseURL(r)
		}
		playURL = base + playURL
	}

	h.metrics.ObserveRequest("voice", "ok")
	h.logger.Info("voice: reply ready", "call_id", callID, "audio_url", playURL)

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<Response><Play>%s</Play></Response>", playURL)
}

// transcribeRecording downloads the recording and runs it through
// speech-to-text. Transcription itself fails open; only the download
// can error.
func (h *Handler) transcribeRecording(ctx context.Context, recordingURL string) (speech.Transcript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return speech.Transcript{}, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return speech.Transcript{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return speech.Transcript{}, fmt.Errorf("voice: recording fetch status %d", resp.StatusCode)
	}
	return h.bridge.SpeechToText(ctx, resp.Body), nil
}

// writeEmptyResponse acknowledges the provider without a play
// instruction so Exotel ends the turn cleanly instead of retrying.
func (h *Handler) writeEmptyResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<Response></Response>"))
}
