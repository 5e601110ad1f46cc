package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitai-health/relay/internal/artifacts"
	"github.com/mitai-health/relay/internal/synthesis"
	"github.com/mitai-health/relay/pkg/logging"
)

type stubSynthesizer struct {
	reply string
	err   error

	queries []string
	names   []string
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, query, speakerName string) (string, error) {
	s.queries = append(s.queries, query)
	s.names = append(s.names, speakerName)
	return s.reply, s.err
}

type stubBridge struct {
	ref artifacts.Ref
	err error

	texts []string
	names []string
}

func (b *stubBridge) TextToSpeech(ctx context.Context, text, name string) (artifacts.Ref, error) {
	b.texts = append(b.texts, text)
	b.names = append(b.names, name)
	return b.ref, b.err
}

func doChat(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Chat(rec, req)
	return rec
}

func TestChatSuccess(t *testing.T) {
	synth := &stubSynthesizer{reply: "Drink water and rest."}
	bridge := &stubBridge{ref: artifacts.Ref{Name: "reply_ab12cd34.wav", URL: "/static/reply_ab12cd34.wav"}}
	h := NewHandler(synth, bridge, nil, logging.Default())

	rec := doChat(t, h, `{"query":"I feel dizzy","name":"Ravi"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Drink water and rest.", resp["MITAI"])
	assert.Equal(t, "/static/reply_ab12cd34.wav", resp["audio_path"])

	require.Len(t, synth.queries, 1)
	assert.Equal(t, "I feel dizzy", synth.queries[0])
	assert.Equal(t, "Ravi", synth.names[0])

	require.Len(t, bridge.texts, 1)
	assert.Equal(t, "Drink water and rest.", bridge.texts[0])
	assert.Equal(t, "reply.wav", bridge.names[0])
}

func TestChatMissingQuery(t *testing.T) {
	synth := &stubSynthesizer{reply: "unused"}
	bridge := &stubBridge{}
	h := NewHandler(synth, bridge, nil, logging.Default())

	for _, body := range []string{`{}`, `{"query":"   "}`, `not json at all`, ``} {
		rec := doChat(t, h, body)

		require.Equal(t, http.StatusBadRequest, rec.Code, "body: %q", body)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "No query provided", resp["error"])
	}
	assert.Empty(t, synth.queries)
	assert.Empty(t, bridge.texts)
}

func TestChatSynthesisFailure(t *testing.T) {
	t.Run("generation error maps to bad gateway", func(t *testing.T) {
		synth := &stubSynthesizer{err: synthesis.ErrUpstreamGeneration}
		h := NewHandler(synth, &stubBridge{}, nil, logging.Default())

		rec := doChat(t, h, `{"query":"help"}`)

		require.Equal(t, http.StatusBadGateway, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Failed to generate response", resp["error"])
	})

	t.Run("timeout maps to gateway timeout", func(t *testing.T) {
		synth := &stubSynthesizer{err: synthesis.ErrUpstreamTimeout}
		h := NewHandler(synth, &stubBridge{}, nil, logging.Default())

		rec := doChat(t, h, `{"query":"help"}`)

		require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})
}

func TestChatAudioRenderingFailure(t *testing.T) {
	synth := &stubSynthesizer{reply: "Rest well."}
	bridge := &stubBridge{err: errors.New("engine offline")}
	h := NewHandler(synth, bridge, nil, logging.Default())

	rec := doChat(t, h, `{"query":"tired all day"}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to render audio", resp["error"])
}
