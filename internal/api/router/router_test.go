package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitai-health/relay/internal/artifacts"
	"github.com/mitai-health/relay/internal/channels/chat"
	"github.com/mitai-health/relay/pkg/logging"
)

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(ctx context.Context, query, speakerName string) (string, error) {
	return "Rest and drink fluids.", nil
}

type stubBridge struct{}

func (stubBridge) TextToSpeech(ctx context.Context, text, name string) (artifacts.Ref, error) {
	return artifacts.Ref{Name: name, URL: "/static/" + name}, nil
}

func newTestRouter(t *testing.T, staticDir string) http.Handler {
	t.Helper()
	return New(&Config{
		Logger:      logging.Default(),
		ChatHandler: chat.NewHandler(stubSynthesizer{}, stubBridge{}, nil, logging.Default()),
		StaticDir:   staticDir,
	})
}

func TestRootStatus(t *testing.T) {
	h := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"mitai running"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestChatRouteWired(t *testing.T) {
	h := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"headache"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rest and drink fluids.")
}

func TestUnwiredChannelsReturn404(t *testing.T) {
	h := newTestRouter(t, "")

	for _, path := range []string{"/exotel/voice", "/whatsapp"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestStaticFileServing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reply.wav"), []byte("RIFFdata"), 0o644))

	h := newTestRouter(t, dir)

	req := httptest.NewRequest(http.MethodGet, "/static/reply.wav", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RIFFdata", rec.Body.String())
}
