package uploads

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/johann/primevista/internal/errors"
	"github.com/johann/primevista/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	gifBytes  = append([]byte("GIF89a"), make([]byte, 32)...)
	jpegBytes = append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), make([]byte, 32)...)
)

func newTestUploader(t *testing.T, maxSize int64) (*Uploader, string) {
	t.Helper()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)
	return New(store, maxSize, zerolog.Nop()), root
}

func TestSaveAcceptsImages(t *testing.T) {
	ctx := context.Background()
	u, root := newTestUploader(t, 1<<20)

	tests := []struct {
		name string
		data []byte
		ext  string
	}{
		{"png", pngBytes, ".png"},
		{"gif", gifBytes, ".gif"},
		{"jpeg", jpegBytes, ".jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := u.Save(ctx, bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(ref, "uploads/"), ref)
			assert.True(t, strings.HasSuffix(ref, tt.ext), ref)

			stored, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(ref)))
			require.NoError(t, err)
			assert.Equal(t, tt.data, stored)
		})
	}
}

func TestSaveRejects(t *testing.T) {
	ctx := context.Background()
	u, root := newTestUploader(t, 1<<20)

	tests := []struct {
		name string
		data []byte
		msg  string
	}{
		{"empty", nil, "The uploaded file is empty."},
		{"text", []byte("hello, I am not an image"), "Images must be PNG, JPEG or GIF."},
		{"too large", append(pngBytes, make([]byte, 1<<20)...), "Images must be smaller than 1 MB."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.Save(ctx, bytes.NewReader(tt.data))
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.msg, err.Error())
		})
	}

	entries, err := os.ReadDir(filepath.Join(root, "uploads"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	u, root := newTestUploader(t, 1<<20)

	ref, err := u.Save(ctx, bytes.NewReader(pngBytes))
	require.NoError(t, err)

	u.Remove(ctx, ref)
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(ref)))
	assert.True(t, os.IsNotExist(err))

	// Foreign references are never touched.
	outside := filepath.Join(root, "logo.png")
	require.NoError(t, os.WriteFile(outside, pngBytes, 0o644))
	u.Remove(ctx, "logo.png")
	u.Remove(ctx, "uploads/../logo.png")
	u.Remove(ctx, "")
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}

func TestLocalStoreOwns(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.True(t, store.Owns("uploads/abc.png"))
	assert.False(t, store.Owns("uploads/"))
	assert.False(t, store.Owns("uploads/../secret"))
	assert.False(t, store.Owns("uploads/a/b.png"))
	assert.False(t, store.Owns("https://cdn.example.com/uploads/abc.png"))
	assert.False(t, store.Owns("img/abc.png"))
}

func TestLocalStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	ref, err := store.Put(ctx, "a.gif", gifBytes, "image/gif")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(ref)))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, ref))
	require.NoError(t, store.Delete(ctx, ref))

	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(ref)))
	assert.True(t, os.IsNotExist(err))
}

func TestS3PublicBase(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.S3Config
		want string
	}{
		{"explicit public url", config.S3Config{PublicURL: "https://cdn.example.com/", Bucket: "b"}, "https://cdn.example.com"},
		{"custom endpoint", config.S3Config{Endpoint: "http://localhost:9000", Bucket: "site"}, "http://localhost:9000/site"},
		{"aws default", config.S3Config{Region: "eu-west-1", Bucket: "site"}, "https://s3.eu-west-1.amazonaws.com/site"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicBase(tt.cfg))
		})
	}
}

func TestS3StoreOwns(t *testing.T) {
	store, err := NewS3Store(context.Background(), config.S3Config{
		Endpoint:  "http://localhost:9000",
		Bucket:    "site",
		Region:    "us-east-1",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)

	assert.True(t, store.Owns("http://localhost:9000/site/uploads/x.png"))
	assert.False(t, store.Owns("http://localhost:9000/other/uploads/x.png"))
	assert.False(t, store.Owns("uploads/x.png"))

	_, err = NewS3Store(context.Background(), config.S3Config{})
	assert.Error(t, err)
}
