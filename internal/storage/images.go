package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxImageSize caps product image uploads at 5 MiB
	MaxImageSize = 5 << 20

	productImageDir = "products"
)

var (
	ErrImageTooLarge   = errors.New("image exceeds the maximum allowed size")
	ErrNotAnImage      = errors.New("uploaded file is not an image")
	ErrImageNotManaged = errors.New("url does not point to a managed image")
)

// ImageStore saves product images and serves them by public URL
type ImageStore interface {
	// Save streams the upload to disk and returns its public URL. Files
	// over MaxImageSize or without an image content type are rejected.
	Save(file multipart.File, header *multipart.FileHeader) (string, error)
	// Delete removes the image behind a public URL previously returned by
	// Save. Unknown URLs are rejected rather than guessed at.
	Delete(url string) error
}

type diskImageStore struct {
	dir     string
	baseURL string
}

// NewDiskImageStore creates an ImageStore rooted at dir, served under
// baseURL. The product subdirectory is created eagerly so the first upload
// cannot fail on a missing path.
func NewDiskImageStore(dir, baseURL string) (ImageStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, productImageDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &diskImageStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *diskImageStore) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > MaxImageSize {
		return "", ErrImageTooLarge
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotAnImage
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".bin"
	}

	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
	relPath := path.Join(productImageDir, name)

	dst, err := os.Create(filepath.Join(s.dir, productImageDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer dst.Close()

	// LimitReader guards against a lying Content-Length
	written, err := io.Copy(dst, io.LimitReader(file, MaxImageSize+1))
	if err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if written > MaxImageSize {
		os.Remove(dst.Name())
		return "", ErrImageTooLarge
	}

	return s.baseURL + "/" + relPath, nil
}

func (s *diskImageStore) Delete(url string) error {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return ErrImageNotManaged
	}

	rel := strings.TrimPrefix(url, prefix)
	rel = path.Clean(rel)
	if rel == "." || strings.HasPrefix(rel, "..") || path.IsAbs(rel) {
		return ErrImageNotManaged
	}

	if err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(rel))); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}
