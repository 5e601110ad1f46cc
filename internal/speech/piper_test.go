package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPiperEngine_RequiresEndpoint(t *testing.T) {
	_, err := NewPiperEngine("", VoiceConfig{})
	assert.Error(t, err)
}

func TestNewPiperEngine_RejectsVoiceAdjustments(t *testing.T) {
	_, err := NewPiperEngine("localhost:10200", VoiceConfig{Pitch: 0.5})
	assert.ErrorIs(t, err, ErrUnsupportedVoiceConfig)

	_, err = NewPiperEngine("localhost:10200", VoiceConfig{Pace: 1.5})
	assert.ErrorIs(t, err, ErrUnsupportedVoiceConfig)
}

func TestNewPiperEngine_StripsScheme(t *testing.T) {
	e, err := NewPiperEngine("tcp://localhost:10200", VoiceConfig{})
	require.NoError(t, err)
	assert.Equal(t, "localhost:10200", e.endpoint)
}

// fakePiperServer answers one Wyoming synthesize exchange.
func fakePiperServer(t *testing.T, pcm []byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		evt, _, err := readWyomingEvent(conn)
		if err != nil || evt.Type != "synthesize" {
			return
		}

		_ = writeWyomingEvent(conn, wyomingEvent{
			Type: "audio-start",
			Data: map[string]any{"rate": float64(16000), "channels": float64(1), "width": float64(2)},
		}, nil)
		_ = writeWyomingEvent(conn, wyomingEvent{Type: "audio-chunk"}, pcm)
		_ = writeWyomingEvent(conn, wyomingEvent{Type: "audio-stop"}, nil)
	}()

	return ln.Addr().String()
}

func TestPiperSynthesize(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	addr := fakePiperServer(t, pcm)

	e, err := NewPiperEngine(addr, VoiceConfig{})
	require.NoError(t, err)

	data, contentType, err := e.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", contentType)

	// WAV header + the PCM payload.
	require.Greater(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, pcm, data[44:])

	// Sample rate from audio-start is honored.
	var rate uint32
	require.NoError(t, binary.Read(bytes.NewReader(data[24:28]), binary.LittleEndian, &rate))
	assert.Equal(t, uint32(16000), rate)
}

func TestPiperSynthesize_EmptyText(t *testing.T) {
	e, err := NewPiperEngine("localhost:10200", VoiceConfig{})
	require.NoError(t, err)
	_, _, err = e.Synthesize(context.Background(), " ")
	assert.Error(t, err)
}

func TestPCMToWAV_Header(t *testing.T) {
	wav := pcmToWAV([]byte{0, 0}, 22050, 1, 2)
	assert.Equal(t, "RIFF", string(wav[:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Len(t, wav, 46)
}
