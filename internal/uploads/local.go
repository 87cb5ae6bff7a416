package uploads

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore writes uploads below the static files root, so they are served
// by the same /static handler as every other asset.
type LocalStore struct {
	root string
}

// NewLocalStore creates the uploads directory below root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	dir := filepath.Join(root, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Put writes data to <root>/uploads/<key> and returns "uploads/<key>".
func (l *LocalStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	ref := path.Join(prefix, key)
	if !l.Owns(ref) {
		return "", fmt.Errorf("invalid upload key %q", key)
	}
	if err := os.WriteFile(l.path(ref), data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", ref, err)
	}
	return ref, nil
}

// Delete removes an uploaded file. References it does not own and files that
// are already gone are ignored.
func (l *LocalStore) Delete(_ context.Context, ref string) error {
	if !l.Owns(ref) {
		return nil
	}
	err := os.Remove(l.path(ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Owns reports whether ref is a direct child of the uploads directory.
func (l *LocalStore) Owns(ref string) bool {
	name, ok := strings.CutPrefix(ref, prefix+"/")
	return ok && name != "" && !strings.ContainsAny(name, `/\`) && name != ".." && name != "."
}

func (l *LocalStore) path(ref string) string {
	return filepath.Join(l.root, filepath.FromSlash(ref))
}
