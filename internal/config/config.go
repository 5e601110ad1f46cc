package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Language model
	LLMProvider    string // "gemini", "openai" or "bedrock"
	GeminiAPIKey   string
	GeminiModelID  string
	OpenAIAPIKey   string
	OpenAIModelID  string
	BedrockModelID string
	AWSRegion      string
	LLMTimeout     time.Duration

	// Speech services
	SarvamAPIKey  string
	SpeechTimeout time.Duration
	TTSEngine     string // "sarvam" or "piper"
	PiperEndpoint string
	TTSLanguage   string
	TTSSpeaker    string

	// Audio artifacts
	ArtifactStore  string // "fs" or "s3"
	StaticDir      string
	ArtifactBucket string

	// WhatsApp via Twilio
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWhatsAppFrom  string
	TwilioWebhookSecret string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		GeminiAPIKey:   getEnv("AI_API_KEY", ""),
		GeminiModelID:  getEnv("LLM_MODEL_ID", "gemini-2.0-flash"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModelID:  getEnv("OPENAI_MODEL_ID", "gpt-4o-mini"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),

		SarvamAPIKey:  getEnv("VOICE_API_KEY", ""),
		SpeechTimeout: getEnvAsDuration("SPEECH_TIMEOUT", 30*time.Second),
		TTSEngine:     strings.ToLower(strings.TrimSpace(getEnv("TTS_ENGINE", "sarvam"))),
		PiperEndpoint: getEnv("PIPER_ENDPOINT", ""),
		TTSLanguage:   getEnv("TTS_LANGUAGE", "en-IN"),
		TTSSpeaker:    getEnv("TTS_SPEAKER", "vidya"),

		ArtifactStore:  strings.ToLower(strings.TrimSpace(getEnv("ARTIFACT_STORE", "fs"))),
		StaticDir:      getEnv("STATIC_DIR", "static"),
		ArtifactBucket: getEnv("ARTIFACT_BUCKET", ""),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom:  getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),
	}
}

// Validate reports missing or inconsistent required settings. A non-nil
// error is fatal at startup; nothing here is recoverable at runtime.
func (c *Config) Validate() error {
	var problems []string

	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			problems = append(problems, "AI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "bedrock":
		if c.BedrockModelID == "" {
			problems = append(problems, "BEDROCK_MODEL_ID is required when LLM_PROVIDER=bedrock")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}

	switch c.TTSEngine {
	case "sarvam":
		if c.SarvamAPIKey == "" {
			problems = append(problems, "VOICE_API_KEY is required when TTS_ENGINE=sarvam")
		}
	case "piper":
		if c.PiperEndpoint == "" {
			problems = append(problems, "PIPER_ENDPOINT is required when TTS_ENGINE=piper")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown TTS_ENGINE %q", c.TTSEngine))
	}

	switch c.ArtifactStore {
	case "fs":
		if c.StaticDir == "" {
			problems = append(problems, "STATIC_DIR is required when ARTIFACT_STORE=fs")
		}
	case "s3":
		if c.ArtifactBucket == "" {
			problems = append(problems, "ARTIFACT_BUCKET is required when ARTIFACT_STORE=s3")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown ARTIFACT_STORE %q", c.ArtifactStore))
	}

	// WhatsApp is optional, but partial credentials are a misconfiguration.
	if c.WhatsAppEnabled() {
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioWhatsAppFrom == "" {
			problems = append(problems, "TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_WHATSAPP_FROM must all be set to enable WhatsApp")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("config: " + strings.Join(problems, "; "))
}

// WhatsAppEnabled reports whether any Twilio setting is present.
func (c *Config) WhatsAppEnabled() bool {
	return c.TwilioAccountSID != "" || c.TwilioAuthToken != "" || c.TwilioWhatsAppFrom != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
