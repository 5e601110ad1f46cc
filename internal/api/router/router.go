package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mitai-health/relay/internal/channels/chat"
	"github.com/mitai-health/relay/internal/channels/voice"
	"github.com/mitai-health/relay/internal/channels/whatsapp"
	"github.com/mitai-health/relay/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	ChatHandler     *chat.Handler
	VoiceHandler    *voice.Handler
	WhatsAppHandler *whatsapp.Handler
	MetricsHandler  http.Handler

	// StaticDir serves synthesized audio under /static when the
	// filesystem artifact store is active. Empty disables the route.
	StaticDir string
}

// New creates a Chi router with all channel routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(requestLogger(cfg.Logger))
	}

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"mitai running"}`))
	})
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.ChatHandler != nil {
		r.Post("/chat", cfg.ChatHandler.Chat)
	}
	if cfg.VoiceHandler != nil {
		r.Post("/exotel/voice", cfg.VoiceHandler.HandleCallback)
	}
	if cfg.WhatsAppHandler != nil {
		r.Post("/whatsapp", cfg.WhatsAppHandler.HandleInbound)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.StaticDir != "" {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir)))
		r.Get("/static/*", fileServer.ServeHTTP)
	}

	return r
}
