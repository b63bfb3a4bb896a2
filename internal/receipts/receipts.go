// Package receipts stores uploaded receipt files and returns the public URL
// kept in a budget's receiptUrl field.
package receipts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"treasury/internal/config"
)

// MaxSize is the largest accepted receipt, in bytes.
const MaxSize = 10 << 20

var (
	ErrEmpty       = errors.New("receipt is empty")
	ErrTooLarge    = errors.New("receipt exceeds 10 MiB")
	ErrUnsupported = errors.New("receipt must be an image or a PDF")
	ErrInvalidKey  = errors.New("invalid receipt key")
	ErrExists      = errors.New("receipt already exists")
)

// Driver names a receipts backend.
type Driver string

const (
	DriverFS Driver = "fs"
	DriverS3 Driver = "s3"
)

// Store persists receipt blobs. Put is create-only.
type Store interface {
	Driver() Driver
	Put(ctx context.Context, key, contentType string, body io.Reader) (url string, err error)
}

var extensions = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/bmp":       ".bmp",
}

// Upload is an accepted receipt ready to be stored.
type Upload struct {
	Key         string
	ContentType string
	Data        []byte
}

// Accept reads at most MaxSize bytes from r, sniffs the content type and
// assigns a fresh key. The original filename only contributes a fallback
// extension.
func Accept(r io.Reader, filename string) (Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return Upload{}, fmt.Errorf("read receipt: %w", err)
	}
	if len(data) == 0 {
		return Upload{}, ErrEmpty
	}
	if len(data) > MaxSize {
		return Upload{}, ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if contentType != "application/pdf" && !strings.HasPrefix(contentType, "image/") {
		return Upload{}, ErrUnsupported
	}

	ext, ok := extensions[contentType]
	if !ok {
		ext = strings.ToLower(filepath.Ext(filename))
	}
	return Upload{
		Key:         uuid.NewString() + ext,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// Save accepts the upload and writes it to store.
func Save(ctx context.Context, store Store, r io.Reader, filename string) (string, error) {
	up, err := Accept(r, filename)
	if err != nil {
		return "", err
	}
	url, err := store.Put(ctx, up.Key, up.ContentType, bytes.NewReader(up.Data))
	if err != nil {
		return "", fmt.Errorf("store receipt %s: %w", up.Key, err)
	}
	return url, nil
}

// New builds the receipts store selected by cfg.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch Driver(cfg.ReceiptsDriver) {
	case DriverFS, "":
		return NewFS(cfg.ReceiptsDir, cfg.ReceiptsBaseURL()+"/receipts")
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.ReceiptsS3Bucket,
			Region:    cfg.ReceiptsS3Region,
			Endpoint:  cfg.ReceiptsS3Endpoint,
			PathStyle: cfg.ReceiptsS3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported receipts driver: %s", cfg.ReceiptsDriver)
	}
}

func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidKey
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == "." || strings.Contains(clean, "/") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
