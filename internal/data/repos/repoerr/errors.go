// Package repoerr classifies storage failures into the errs sentinels.
package repoerr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/chatflow-backend/internal/platform/errs"
)

// MapError tags err with a sentinel from errs. Errors that already carry one
// are returned unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{errs.ErrNotFound, errs.ErrConflict, errs.ErrPersistence, errs.ErrClosed, errs.ErrInvalidArgument, errs.ErrNotReady} {
		if errors.Is(err, known) {
			return err
		}
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return wrap(op, errs.ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return wrap(op, errs.ErrConflict, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return wrap(op, errs.ErrPersistence, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return wrap(op, errs.ErrConflict, err) // unique_violation
		case "23503":
			return wrap(op, errs.ErrInvalidArgument, err) // foreign_key_violation
		case "40001", "40P01", "55P03":
			return wrap(op, errs.ErrPersistence, err) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
		return wrap(op, errs.ErrConflict, err)
	}
	return wrap(op, errs.ErrPersistence, err)
}

func wrap(op string, sentinel, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(sentinel, err))
}
