// Package objstore stores uploaded answer files. GCS is used in production;
// the local disk store serves development and tests.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectAttrs struct {
	Size        int64
	ContentType string
	Updated     time.Time
}

type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Attrs(ctx context.Context, key string) (*ObjectAttrs, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// New builds the store selected by cfg.Mode.
func New(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case ModeGCS, ModeGCSEmulator:
		return newGCSStore(ctx, log, cfg)
	default:
		return NewLocalStore(log, cfg.LocalDir)
	}
}

// CleanKey rejects keys that are empty or try to escape the store root.
func CleanKey(key string) (string, error) {
	k := strings.TrimSpace(key)
	k = strings.TrimPrefix(path.Clean("/"+k), "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("objstore: empty key")
	}
	if k != strings.TrimPrefix(strings.TrimSpace(key), "/") {
		return "", fmt.Errorf("objstore: invalid key %q", key)
	}
	return k, nil
}

func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch path.Ext(s) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
