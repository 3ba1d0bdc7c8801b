package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds maximum upload size")
	ErrEmptyUpload     = errors.New("image is empty")
)

var allowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ImageStore persists uploaded product images and returns their public URL
type ImageStore interface {
	Save(r io.Reader) (url string, err error)
	Delete(url string) error
}

type localStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

// NewLocalStore stores files in dir and exposes them below baseURL
func NewLocalStore(dir, baseURL string, maxBytes int64) (ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &localStore{
		dir:      dir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}, nil
}

// Save sniffs the content type, rejects anything but jpeg/png/webp and writes
// the file under a random name.
func (s *localStore) Save(r io.Reader) (string, error) {
	// One extra byte tells an exact-limit upload apart from an oversized one
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	name := uuid.New().String() + mtype.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return s.baseURL + "/" + name, nil
}

// Delete removes a previously saved image. URLs outside this store are ignored.
func (s *localStore) Delete(url string) error {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}

	name := filepath.Base(strings.TrimPrefix(url, prefix))
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	return nil
}
