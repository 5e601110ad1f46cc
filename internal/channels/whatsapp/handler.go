package whatsapp

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/mitai-health/relay/internal/channels"
	"github.com/mitai-health/relay/internal/observability/metrics"
	"github.com/mitai-health/relay/pkg/logging"
)

var handlerTracer = otel.Tracer("mitai.internal.channels.whatsapp")

// Synthesizer produces the assistant reply for an inbound message.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, speakerName string) (string, error)
}

// Messenger delivers one outbound WhatsApp message.
type Messenger interface {
	Send(ctx context.Context, to, body string) error
}

// Handler serves the Twilio WhatsApp inbound webhook.
type Handler struct {
	synth       Synthesizer
	sender      Messenger
	authToken   string
	sendTimeout time.Duration
	metrics     *metrics.ChannelMetrics
	logger      *logging.Logger
}

// NewHandler wires the WhatsApp webhook. authToken enables Twilio
// signature validation when non-empty.
func NewHandler(synth Synthesizer, sender Messenger, authToken string, m *metrics.ChannelMetrics, logger *logging.Logger) *Handler {
	if synth == nil {
		panic("whatsapp: synthesizer is required")
	}
	if sender == nil {
		panic("whatsapp: sender is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		synth:       synth,
		sender:      sender,
		authToken:   authToken,
		sendTimeout: 20 * time.Second,
		metrics:     m,
		logger:      logger,
	}
}

// HandleInbound processes a Twilio message webhook. The caller is
// acknowledged immediately; the reply is delivered out of band.
func (h *Handler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerTracer.Start(r.Context(), "channels.whatsapp.inbound")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		h.metrics.ObserveRequest("whatsapp", "bad_request")
		http.Error(w, "Invalid form payload", http.StatusBadRequest)
		return
	}

	if h.authToken != "" {
		if !ValidateSignature(r, h.authToken, channels.BuildAbsoluteURL(r)) {
			h.logger.Warn("whatsapp webhook signature rejected")
			h.metrics.ObserveRequest("whatsapp", "forbidden")
			http.Error(w, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	from := strings.TrimSpace(r.PostFormValue("From"))
	body := strings.TrimSpace(r.PostFormValue("Body"))
	if body == "" || from == "" {
		h.metrics.ObserveRequest("whatsapp", "bad_request")
		h.logger.Warn("whatsapp: rejected webhook", "error", channels.ErrMissingQuery)
		http.Error(w, "No query", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.PostFormValue("ProfileName"))

	reply, err := h.synth.Synthesize(ctx, body, name)
	if err != nil {
		// The sender already got their HTTP ack path; log and move on.
		h.logger.Error("whatsapp synthesis failed", "error", err)
		h.metrics.ObserveRequest("whatsapp", "upstream_error")
		h.writeOK(w)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.sendTimeout)
	go func() {
		defer cancel()
		if err := h.sender.Send(sendCtx, from, reply); err != nil {
			h.logger.Error("whatsapp outbound send failed", "to", from, "error", err)
			h.metrics.ObserveSend("whatsapp", "error")
			return
		}
		h.metrics.ObserveSend("whatsapp", "ok")
	}()

	h.metrics.ObserveRequest("whatsapp", "ok")
	h.writeOK(w)
}

func (h *Handler) writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
