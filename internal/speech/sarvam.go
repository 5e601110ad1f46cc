package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mitai-health/relay/pkg/logging"
)

var sarvamTracer = otel.Tracer("mitai.internal.speech.sarvam")

const (
	defaultSarvamBaseURL = "https://api.sarvam.ai"
	sarvamSTTModel       = "saarika:v2.5"
)

// SarvamClient calls the Sarvam AI speech APIs. It implements both
// Engine (text-to-speech) and Transcriber (speech-to-text).
type SarvamClient struct {
	apiKey     string
	baseURL    string
	voice      VoiceConfig
	httpClient *http.Client
	logger     *logging.Logger
}

// NewSarvamClient validates the voice configuration up front so a bad
// deployment fails at startup, not mid-call.
func NewSarvamClient(apiKey string, voice VoiceConfig, logger *logging.Logger) (*SarvamClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("speech: sarvam api key is required")
	}
	voice = voice.withDefaults()
	if err := voice.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SarvamClient{
		apiKey:  apiKey,
		baseURL: defaultSarvamBaseURL,
		voice:   voice,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

type sarvamTTSRequest struct {
	Text                string  `json:"text"`
	TargetLanguageCode  string  `json:"target_language_code"`
	Speaker             string  `json:"speaker"`
	Pitch               float64 `json:"pitch"`
	Pace                float64 `json:"pace"`
	Loudness            float64 `json:"loudness"`
	SpeechSampleRate    int     `json:"speech_sample_rate"`
	EnablePreprocessing bool    `json:"enable_preprocessing"`
	Model               string  `json:"model"`
}

type sarvamTTSResponse struct {
	RequestID string   `json:"request_id"`
	Audios    []string `json:"audios"`
}

// Synthesize renders text to WAV audio via the Sarvam TTS API.
func (c *SarvamClient) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", errors.New("speech: empty text for synthesis")
	}

	ctx, span := sarvamTracer.Start(ctx, "speech.sarvam.tts")
	defer span.End()
	span.SetAttributes(attribute.Int("mitai.tts.text_len", len(text)))

	payload, err := json.Marshal(sarvamTTSRequest{
		Text:                text,
		TargetLanguageCode:  c.voice.Language,
		Speaker:             c.voice.Speaker,
		Pitch:               c.voice.Pitch,
		Pace:                c.voice.Pace,
		Loudness:            c.voice.Loudness,
		SpeechSampleRate:    c.voice.SampleRate,
		EnablePreprocessing: true,
		Model:               c.voice.Model,
	})
	if err != nil {
		return nil, "", fmt.Errorf("speech: marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text-to-speech", bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("speech: sarvam tts request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("speech: sarvam tts status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		span.RecordError(err)
		return nil, "", err
	}

	var parsed sarvamTTSResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, "", fmt.Errorf("speech: decode tts response: %w", err)
	}
	if len(parsed.Audios) == 0 {
		return nil, "", errors.New("speech: sarvam tts returned no audio")
	}

	audio, err := base64.StdEncoding.DecodeString(parsed.Audios[0])
	if err != nil {
		return nil, "", fmt.Errorf("speech: decode tts audio: %w", err)
	}
	return audio, "audio/wav", nil
}

type sarvamSTTResponse struct {
	RequestID  string `json:"request_id"`
	Transcript string `json:"transcript"`
}

// SpeechToText transcribes a recording via the Sarvam STT API. It
// fails open: every failure path logs and returns the fallback phrase
// as an unintelligible Transcript so the voice pipeline never crashes
// on bad audio.
func (c *SarvamClient) SpeechToText(ctx context.Context, audio io.Reader) Transcript {
	ctx, span := sarvamTracer.Start(ctx, "speech.sarvam.stt")
	defer span.End()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", "recording.wav")
	if err == nil {
		_, err = io.Copy(part, audio)
	}
	if err == nil {
		err = form.WriteField("model", sarvamSTTModel)
	}
	if err == nil {
		err = form.WriteField("language_code", c.voice.Language)
	}
	if err == nil {
		err = form.Close()
	}
	if err != nil {
		c.logger.Warn("sarvam stt: failed to build request", "error", err)
		return Transcript{Text: UnintelligibleFallback}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speech-to-text", &buf)
	if err != nil {
		return Transcript{Text: UnintelligibleFallback}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("api-subscription-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("sarvam stt: request failed", "error", err)
		return Transcript{Text: UnintelligibleFallback}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("sarvam stt: non-2xx response", "status", resp.StatusCode)
		return Transcript{Text: UnintelligibleFallback}
	}

	var parsed sarvamSTTResponse
	if err := json.Unmarshal(body, &parsed); err != nil || strings.TrimSpace(parsed.Transcript) == "" {
		c.logger.Warn("sarvam stt: empty or undecodable transcript")
		return Transcript{Text: UnintelligibleFallback}
	}

	return Transcript{Text: strings.TrimSpace(parsed.Transcript), Intelligible: true}
}
