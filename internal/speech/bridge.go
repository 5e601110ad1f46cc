// Package speech converts Reply text to playable audio artifacts and
// inbound recordings to text. Engines are swappable: a cloud synthesis
// API (Sarvam) or a local neural engine (Piper) behind one contract.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mitai-health/relay/internal/artifacts"
	"github.com/mitai-health/relay/pkg/logging"
)

// UnintelligibleFallback is the utterance substituted when transcription
// fails or the audio is ambiguous. It is a valid Utterance, not an error.
const UnintelligibleFallback = "Sorry, I could not understand your speech."

// ErrUnsupportedVoiceConfig reports a voice parameter combination the
// selected engine cannot honor.
var ErrUnsupportedVoiceConfig = errors.New("speech: unsupported voice configuration")

// VoiceConfig holds synthesis parameters. Zero values select engine
// defaults via withDefaults.
type VoiceConfig struct {
	Speaker    string
	Language   string  // BCP-47-ish provider code, e.g. "en-IN"
	Model      string  // provider model, e.g. "bulbul:v2"
	Pitch      float64 // -0.75..0.75, 0 is neutral
	Pace       float64 // 0.5..2.0, 1 is neutral
	Loudness   float64 // 0.3..3.0, 1 is neutral
	SampleRate int     // Hz
}

func (c VoiceConfig) withDefaults() VoiceConfig {
	if c.Speaker == "" {
		c.Speaker = "vidya"
	}
	if c.Language == "" {
		c.Language = "en-IN"
	}
	if c.Model == "" {
		c.Model = "bulbul:v2"
	}
	if c.Pace == 0 {
		c.Pace = 1
	}
	if c.Loudness == 0 {
		c.Loudness = 1
	}
	if c.SampleRate == 0 {
		c.SampleRate = 22050
	}
	return c
}

// validate rejects parameter ranges no engine supports.
func (c VoiceConfig) validate() error {
	if c.Pitch < -0.75 || c.Pitch > 0.75 {
		return fmt.Errorf("%w: pitch %v out of range [-0.75, 0.75]", ErrUnsupportedVoiceConfig, c.Pitch)
	}
	if c.Pace < 0.5 || c.Pace > 2 {
		return fmt.Errorf("%w: pace %v out of range [0.5, 2]", ErrUnsupportedVoiceConfig, c.Pace)
	}
	if c.Loudness < 0.3 || c.Loudness > 3 {
		return fmt.Errorf("%w: loudness %v out of range [0.3, 3]", ErrUnsupportedVoiceConfig, c.Loudness)
	}
	switch c.SampleRate {
	case 8000, 16000, 22050, 24000:
	default:
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedVoiceConfig, c.SampleRate)
	}
	return nil
}

// Engine produces audio bytes from text.
type Engine interface {
	Synthesize(ctx context.Context, text string) (data []byte, contentType string, err error)
}

// Transcript is the outcome of speech recognition. Intelligible is
// false when recognition failed and Text carries the fixed fallback
// phrase; callers decide whether to forward it or stop.
type Transcript struct {
	Text         string
	Intelligible bool
}

// Transcriber converts recorded audio to text. Implementations fail
// open: they never return an error, only an unintelligible Transcript.
type Transcriber interface {
	SpeechToText(ctx context.Context, audio io.Reader) Transcript
}

// Bridge ties an Engine and a Transcriber to an artifact store,
// applying a per-call timeout around each provider call.
type Bridge struct {
	engine      Engine
	transcriber Transcriber
	store       artifacts.Store
	timeout     time.Duration
	logger      *logging.Logger
}

// NewBridge builds a Bridge. transcriber may be nil for channels that
// never receive audio. timeout zero means 30s.
func NewBridge(engine Engine, transcriber Transcriber, store artifacts.Store, timeout time.Duration, logger *logging.Logger) *Bridge {
	if engine == nil {
		panic("speech: engine cannot be nil")
	}
	if store == nil {
		panic("speech: artifact store cannot be nil")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Bridge{engine: engine, transcriber: transcriber, store: store, timeout: timeout, logger: logger}
}

// TextToSpeech renders text to audio and stores it under name,
// returning the artifact reference.
func (b *Bridge) TextToSpeech(ctx context.Context, text, name string) (artifacts.Ref, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	data, contentType, err := b.engine.Synthesize(callCtx, text)
	if err != nil {
		return artifacts.Ref{}, fmt.Errorf("speech: synthesize: %w", err)
	}

	ref, err := b.store.Put(ctx, name, contentType, data)
	if err != nil {
		return artifacts.Ref{}, err
	}
	b.logger.Debug("audio artifact written", "name", ref.Name, "bytes", len(data))
	return ref, nil
}

// SpeechToText transcribes a recording. It fails open: any failure
// yields an unintelligible Transcript carrying the fallback phrase.
func (b *Bridge) SpeechToText(ctx context.Context, audio io.Reader) Transcript {
	if b.transcriber == nil {
		return Transcript{Text: UnintelligibleFallback}
	}
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.transcriber.SpeechToText(callCtx, audio)
}
