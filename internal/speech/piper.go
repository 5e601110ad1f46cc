package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// PiperEngine synthesizes speech with a local Piper server speaking the
// Wyoming protocol (linuxserver/piper, TCP port 10200). Each event is
// framed as:
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
type PiperEngine struct {
	endpoint string
	voice    string
}

// NewPiperEngine validates that the requested voice parameters are
// expressible with Piper. Piper has no pitch/pace/loudness controls,
// so anything but the neutral values is an unsupported combination.
func NewPiperEngine(endpoint string, voice VoiceConfig) (*PiperEngine, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("speech: piper endpoint is required")
	}
	voice = voice.withDefaults()
	if err := voice.validate(); err != nil {
		return nil, err
	}
	if voice.Pitch != 0 || voice.Pace != 1 || voice.Loudness != 1 {
		return nil, fmt.Errorf("%w: piper does not support pitch/pace/loudness adjustment", ErrUnsupportedVoiceConfig)
	}

	endpoint = strings.TrimPrefix(endpoint, "tcp://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	name := voice.Speaker
	if name == "" || name == "vidya" {
		// Piper ships its own voice models; map the cloud default.
		name = "en_US-lessac-medium"
	}
	return &PiperEngine{endpoint: endpoint, voice: name}, nil
}

// Synthesize sends text to the Piper server and returns WAV audio.
func (e *PiperEngine) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", errors.New("speech: empty text for synthesis")
	}

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", e.endpoint)
	if err != nil {
		return nil, "", fmt.Errorf("speech: connecting to piper: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	synth := wyomingEvent{
		Type: "synthesize",
		Data: map[string]any{
			"text":  text,
			"voice": map[string]any{"name": e.voice},
		},
	}
	if err := writeWyomingEvent(conn, synth, nil); err != nil {
		return nil, "", fmt.Errorf("speech: sending synthesize event: %w", err)
	}

	// Response sequence: audio-start, audio-chunk*, audio-stop.
	var (
		pcm        bytes.Buffer
		sampleRate = 22050
		channels   = 1
		width      = 2
	)
	for {
		evt, payload, err := readWyomingEvent(conn)
		if err != nil {
			return nil, "", fmt.Errorf("speech: reading piper event: %w", err)
		}
		switch evt.Type {
		case "audio-start":
			if rate, ok := evt.Data["rate"].(float64); ok {
				sampleRate = int(rate)
			}
			if ch, ok := evt.Data["channels"].(float64); ok {
				channels = int(ch)
			}
			if w, ok := evt.Data["width"].(float64); ok {
				width = int(w)
			}
		case "audio-chunk":
			pcm.Write(payload)
		case "audio-stop":
			return pcmToWAV(pcm.Bytes(), sampleRate, channels, width), "audio/wav", nil
		case "error":
			msg := "unknown error"
			if text, ok := evt.Data["text"].(string); ok {
				msg = text
			}
			return nil, "", fmt.Errorf("speech: piper error: %s", msg)
		}
	}
}

type wyomingEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func writeWyomingEvent(w io.Writer, evt wyomingEvent, payload []byte) error {
	jsonBytes, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%d %d\n", len(jsonBytes), len(payload)); err != nil {
		return err
	}
	if _, err := w.Write(jsonBytes); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

func readWyomingEvent(r io.Reader) (*wyomingEvent, []byte, error) {
	header, err := readLine(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid wyoming header %q", header)
	}
	jsonLen, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing json_length: %w", err)
	}
	payloadLen, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing payload_length: %w", err)
	}

	jsonBuf := make([]byte, jsonLen+1) // +1 for trailing newline
	if _, err := io.ReadFull(r, jsonBuf); err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}
	var evt wyomingEvent
	if err := json.Unmarshal(jsonBuf[:jsonLen], &evt); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	return &evt, payload, nil
}

func readLine(r io.Reader) (string, error) {
	var line []byte
	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, one); err != nil {
			return "", err
		}
		if one[0] == '\n' {
			return string(line), nil
		}
		line = append(line, one[0])
	}
}

// pcmToWAV wraps raw PCM samples in a 44-byte WAV header.
func pcmToWAV(pcm []byte, sampleRate, channels, bytesPerSample int) []byte {
	dataLen := len(pcm)

	buf := &bytes.Buffer{}
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*bytesPerSample))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels*bytesPerSample))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bytesPerSample*8))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}
