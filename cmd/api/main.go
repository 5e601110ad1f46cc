package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mitai-health/relay/internal/api/router"
	"github.com/mitai-health/relay/internal/artifacts"
	"github.com/mitai-health/relay/internal/channels/chat"
	"github.com/mitai-health/relay/internal/channels/voice"
	"github.com/mitai-health/relay/internal/channels/whatsapp"
	"github.com/mitai-health/relay/internal/config"
	"github.com/mitai-health/relay/internal/observability/metrics"
	"github.com/mitai-health/relay/internal/speech"
	"github.com/mitai-health/relay/internal/synthesis"
	"github.com/mitai-health/relay/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting mitai relay",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"tts_engine", cfg.TTSEngine,
		"artifact_store", cfg.ArtifactStore,
	)

	ctx := context.Background()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineMetrics := metrics.NewPipelineMetrics(registry)
	channelMetrics := metrics.NewChannelMetrics(registry)

	llm, modelID, err := buildLLMClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize LLM client", "error", err)
		os.Exit(1)
	}

	synthesizer := synthesis.NewSynthesizer(llm, modelID, cfg.LLMTimeout, pipelineMetrics, logger)

	store, staticDir, err := buildArtifactStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize artifact store", "error", err)
		os.Exit(1)
	}

	engine, transcriber, err := buildSpeechEngine(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize speech engine", "error", err)
		os.Exit(1)
	}
	bridge := speech.NewBridge(engine, transcriber, store, cfg.SpeechTimeout, logger)

	chatHandler := chat.NewHandler(synthesizer, bridge, channelMetrics, logger)
	voiceHandler := voice.NewHandler(synthesizer, bridge, nil, cfg.PublicBaseURL, channelMetrics, logger)

	var whatsappHandler *whatsapp.Handler
	if cfg.WhatsAppEnabled() {
		sender := whatsapp.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom, logger)
		whatsappHandler = whatsapp.NewHandler(synthesizer, sender, cfg.TwilioWebhookSecret, channelMetrics, logger)
		logger.Info("whatsapp channel enabled", "from", cfg.TwilioWhatsAppFrom)
	} else {
		logger.Info("whatsapp channel disabled, no Twilio credentials configured")
	}

	r := router.New(&router.Config{
		Logger:          logger,
		ChatHandler:     chatHandler,
		VoiceHandler:    voiceHandler,
		WhatsAppHandler: whatsappHandler,
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		StaticDir:       staticDir,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildLLMClient constructs the provider chosen by LLM_PROVIDER and
// returns it with the model identifier the synthesizer should request.
func buildLLMClient(ctx context.Context, cfg *config.Config, logger *logging.Logger) (synthesis.LLMClient, string, error) {
	switch cfg.LLMProvider {
	case "gemini":
		client, err := synthesis.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, "", err
		}
		return withBedrockFallback(ctx, cfg, client, logger), cfg.GeminiModelID, nil
	case "openai":
		client, err := synthesis.NewOpenAILLMClient(cfg.OpenAIAPIKey, cfg.OpenAIModelID)
		if err != nil {
			return nil, "", err
		}
		return withBedrockFallback(ctx, cfg, client, logger), cfg.OpenAIModelID, nil
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, "", err
		}
		return synthesis.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg)), cfg.BedrockModelID, nil
	default:
		return nil, "", fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// withBedrockFallback layers a Bedrock fallback behind the primary
// provider when a fallback model is configured.
func withBedrockFallback(ctx context.Context, cfg *config.Config, primary synthesis.LLMClient, logger *logging.Logger) synthesis.LLMClient {
	if cfg.BedrockModelID == "" || cfg.LLMProvider == "bedrock" {
		return primary
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Warn("bedrock fallback unavailable", "error", err)
		return primary
	}
	fallback := fixedModelClient{
		inner: synthesis.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg)),
		model: cfg.BedrockModelID,
	}
	return synthesis.NewFallbackLLMClient(primary, fallback, logger)
}

// fixedModelClient pins the model identifier, so a fallback provider
// is not asked for the primary provider's model.
type fixedModelClient struct {
	inner synthesis.LLMClient
	model string
}

func (c fixedModelClient) Complete(ctx context.Context, req synthesis.LLMRequest) (synthesis.LLMResponse, error) {
	req.Model = c.model
	return c.inner.Complete(ctx, req)
}

// buildArtifactStore returns the configured store plus the directory
// to expose under /static (empty when not serving from disk).
func buildArtifactStore(ctx context.Context, cfg *config.Config) (artifacts.Store, string, error) {
	switch cfg.ArtifactStore {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, "", err
		}
		store, err := artifacts.NewS3Store(s3.NewFromConfig(awsCfg), cfg.ArtifactBucket, cfg.AWSRegion, "")
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	default:
		store, err := artifacts.NewFSStore(cfg.StaticDir, "/static")
		if err != nil {
			return nil, "", err
		}
		return store, store.Dir(), nil
	}
}

func buildSpeechEngine(cfg *config.Config, logger *logging.Logger) (speech.Engine, speech.Transcriber, error) {
	voiceCfg := speech.VoiceConfig{
		Speaker:  cfg.TTSSpeaker,
		Language: cfg.TTSLanguage,
	}
	switch cfg.TTSEngine {
	case "piper":
		engine, err := speech.NewPiperEngine(cfg.PiperEndpoint, voiceCfg)
		if err != nil {
			return nil, nil, err
		}
		// Piper has no transcription; the bridge fails open without one.
		return engine, nil, nil
	default:
		client, err := speech.NewSarvamClient(cfg.SarvamAPIKey, voiceCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}
}
