package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_Put(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "/static")
	require.NoError(t, err)

	ref, err := store.Put(context.Background(), "call123_reply.wav", "audio/wav", []byte("RIFF"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref.URL, "/static/call123_reply-"))
	assert.True(t, strings.HasSuffix(ref.Name, ".wav"))

	data, err := os.ReadFile(filepath.Join(dir, ref.Name))
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), data)
}

func TestFSStore_PutSameNameNoCollision(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "/static")
	require.NoError(t, err)

	first, err := store.Put(context.Background(), "reply.wav", "audio/wav", []byte("one"))
	require.NoError(t, err)
	second, err := store.Put(context.Background(), "reply.wav", "audio/wav", []byte("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Name, second.Name)
}

func TestFSStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "static")
	_, err := NewFSStore(dir, "/static")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestUniqueName(t *testing.T) {
	assert.True(t, strings.HasSuffix(uniqueName("a.mp3"), ".mp3"))
	assert.True(t, strings.HasSuffix(uniqueName("noext"), ".wav"))
	assert.True(t, strings.HasPrefix(uniqueName("../../etc/passwd"), "passwd-"), "path components must be stripped")
}

type fakeS3 struct {
	puts []s3.PutObjectInput
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, *params)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Put(t *testing.T) {
	api := &fakeS3{}
	store, err := NewS3Store(api, "mitai-audio", "ap-south-1", "audio")
	require.NoError(t, err)

	ref, err := store.Put(context.Background(), "call42_reply.wav", "audio/wav", []byte("RIFF"))
	require.NoError(t, err)

	require.Len(t, api.puts, 1)
	assert.Equal(t, "mitai-audio", *api.puts[0].Bucket)
	assert.True(t, strings.HasPrefix(*api.puts[0].Key, "audio/call42_reply-"))
	assert.True(t, strings.HasPrefix(ref.URL, "https://mitai-audio.s3.ap-south-1.amazonaws.com/audio/"))
}
