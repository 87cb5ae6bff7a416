// Package uploads accepts admin image uploads and stores them either below
// the static files root or in an S3-compatible bucket.
package uploads

import (
	"context"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	apperrors "github.com/johann/primevista/internal/errors"
	"github.com/rs/zerolog"
)

// prefix is the directory (or key prefix) every upload lives under.
const prefix = "uploads"

// allowedTypes are the image formats the admin panel accepts.
var allowedTypes = []string{"image/png", "image/jpeg", "image/gif"}

// Store persists uploaded bytes and hands back the reference that is saved
// in the content row.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
	Owns(ref string) bool
}

// Uploader validates incoming images before handing them to a Store.
type Uploader struct {
	store   Store
	maxSize int64
	logger  zerolog.Logger
}

// New creates an Uploader. maxSize is in bytes.
func New(store Store, maxSize int64, logger zerolog.Logger) *Uploader {
	return &Uploader{
		store:   store,
		maxSize: maxSize,
		logger:  logger.With().Str("component", "uploads").Logger(),
	}
}

// Save reads r, checks that it is a PNG, JPEG or GIF within the size limit
// and stores it under a fresh random name. Rejected input is reported as a
// validation error.
func (u *Uploader) Save(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, u.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", apperrors.Validation("The uploaded file is empty.")
	}
	if int64(len(data)) > u.maxSize {
		return "", apperrors.Validation(fmt.Sprintf("Images must be smaller than %d MB.", u.maxSize>>20))
	}

	mime := mimetype.Detect(data)
	if !allowed(mime) {
		return "", apperrors.Validation("Images must be PNG, JPEG or GIF.")
	}

	key := uuid.NewString() + mime.Extension()
	ref, err := u.store.Put(ctx, key, data, mime.String())
	if err != nil {
		return "", err
	}

	u.logger.Info().Str("ref", ref).Str("type", mime.String()).Int("bytes", len(data)).Msg("stored upload")
	return ref, nil
}

// Remove deletes ref when it belongs to the store. Failures are logged, not
// returned: a stale file never blocks a content edit.
func (u *Uploader) Remove(ctx context.Context, ref string) {
	if ref == "" || !u.store.Owns(ref) {
		return
	}
	if err := u.store.Delete(ctx, ref); err != nil {
		u.logger.Warn().Err(err).Str("ref", ref).Msg("failed to delete upload")
	}
}

func allowed(m *mimetype.MIME) bool {
	for _, t := range allowedTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}
