package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/chatflow-backend/internal/chatflow/fields"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
	"github.com/yungbote/chatflow-backend/internal/platform/objstore"
)

const MaxUploadBytes = 20 << 20

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type UploadService interface {
	// Upload stores a file for the session's current file field and returns
	// the object key, which the caller submits as the answer.
	Upload(ctx context.Context, sessionID uuid.UUID, fieldName, filename string, r io.Reader) (string, error)
}

type uploadService struct {
	log      *logger.Logger
	sessions SessionStore
	store    objstore.Store
}

func NewUploadService(baseLog *logger.Logger, sessions SessionStore, store objstore.Store) UploadService {
	return &uploadService{
		log:      baseLog.With("service", "UploadService"),
		sessions: sessions,
		store:    store,
	}
}

func (s *uploadService) Upload(ctx context.Context, sessionID uuid.UUID, fieldName, filename string, r io.Reader) (string, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.Done() {
		return "", fmt.Errorf("%w: session already finished", errs.ErrClosed)
	}
	f, ok := sess.Current()
	if !ok || f.Name != strings.TrimSpace(fieldName) {
		return "", fmt.Errorf("%w: field %q is not awaiting an answer", errs.ErrInvalidArgument, fieldName)
	}
	if f.Type != fields.File {
		return "", fmt.Errorf("%w: field %q does not accept files", errs.ErrInvalidArgument, fieldName)
	}

	key := path.Join("submissions", sess.ChatflowID.String(), sess.ID.String(), f.Name, uuid.NewString()+"-"+safeFilename(filename))
	lr := &io.LimitedReader{R: r, N: MaxUploadBytes + 1}
	if err := s.store.Put(ctx, key, lr); err != nil {
		return "", fmt.Errorf("%w: store upload: %v", errs.ErrPersistence, err)
	}
	if lr.N <= 0 {
		_ = s.store.Delete(ctx, key)
		return "", fmt.Errorf("%w: file exceeds %d bytes", errs.ErrInvalidArgument, MaxUploadBytes)
	}
	s.log.Info("Answer file stored", "session_id", sess.ID, "field", f.Name, "key", key)
	return key, nil
}

func safeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "upload"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return base
}
