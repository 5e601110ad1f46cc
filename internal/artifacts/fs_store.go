package artifacts

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FSStore writes artifacts into a directory served as static files.
type FSStore struct {
	baseDir   string
	urlPrefix string
}

// NewFSStore creates the base directory if needed. urlPrefix is the
// route the directory is served under (typically "/static").
func NewFSStore(baseDir, urlPrefix string) (*FSStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("artifacts: base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create %s: %w", baseDir, err)
	}
	if urlPrefix == "" {
		urlPrefix = "/static"
	}
	return &FSStore{baseDir: baseDir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// Put writes data under a uniquified file name derived from name and
// returns its reference.
func (s *FSStore) Put(ctx context.Context, name, contentType string, data []byte) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}
	fileName := uniqueName(name)
	if err := os.WriteFile(filepath.Join(s.baseDir, fileName), data, 0o644); err != nil {
		return Ref{}, fmt.Errorf("artifacts: write %s: %w", fileName, err)
	}
	return Ref{Name: fileName, URL: s.urlPrefix + "/" + fileName}, nil
}

// Dir returns the directory artifacts are written to, for the static
// file route.
func (s *FSStore) Dir() string {
	return s.baseDir
}

// uniqueName inserts a short random token before the extension so two
// requests sharing a call identifier never collide.
func uniqueName(name string) string {
	name = path.Base(strings.TrimSpace(name))
	if name == "" || name == "." {
		name = "artifact.wav"
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "" {
		ext = ".wav"
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s%s", base, token, ext)
}
