package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vidtube/backend/internal/apperr"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = apperr.NotFound("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = apperr.New(apperr.KindConflict, "record conflict")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// pgError maps driver failures onto the repository sentinels. Constraint codes
// become ErrConflict / ErrNotFound, timeouts become a retryable unavailability and
// everything else is wrapped with op for the logs.
func pgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation:
			return ErrNotFound
		case pgCheckViolation:
			return apperr.Wrap(apperr.KindValidation, "request violates a data constraint", err)
		}
	}
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, apperr.Unavailable(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// mongoError is the document-store counterpart of pgError.
func mongoError(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrConflict
	case mongo.IsTimeout(err), mongo.IsNetworkError(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, apperr.Unavailable(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
