package errors

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapStorageError maps persistence backend errors to AppError instances.
// It handles:
// - Context timeouts/cancellations → Timeout/Canceled
// - Missing state table → Storage (with migration hint)
// - Connection class errors → Storage
//
// Other PostgreSQL errors map to a generic Storage error; non-database errors
// are returned unchanged.
func MapStorageError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{
			Code:    ErrCodeTimeout,
			Message: "Storage operation timed out.",
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{
			Code:    ErrCodeCanceled,
			Message: "Storage operation was canceled.",
			Cause:   err,
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch {
	case pgErr.Code == pgerrcode.UndefinedTable:
		return &AppError{
			Code:    ErrCodeStorage,
			Message: "State table is missing. Run migrations or enable DB_RUN_MIGRATIONS_ON_START.",
			Cause:   pgErr,
		}
	case pgerrcode.IsConnectionException(pgErr.Code):
		return &AppError{
			Code:    ErrCodeStorage,
			Message: "State database connection failed.",
			Cause:   pgErr,
		}
	case pgerrcode.IsInsufficientResources(pgErr.Code):
		return &AppError{
			Code:    ErrCodeStorage,
			Message: "State database is out of resources.",
			Cause:   pgErr,
		}
	default:
		return &AppError{
			Code:    ErrCodeStorage,
			Message: "A state database error occurred.",
			Cause:   pgErr,
		}
	}
}
