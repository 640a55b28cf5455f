package postgres

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/profilesync/internal/model"
)

// remoteError classifies a driver error so the sync engine can decide whether
// to retry it.
func remoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	return model.NewRemoteError(classify(err), op, err)
}

func notFound(op string) error {
	return model.NewRemoteError(model.CodeNotFound, op, model.ErrNotFound)
}

func classify(err error) model.ErrorCode {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return model.CodeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return model.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return model.CodeCancelled
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return model.CodeUnavailable
	}

	if pgconn.Timeout(err) {
		return model.CodeDeadlineExceeded
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return model.CodeUnavailable
	}

	return model.CodeUnknown
}

// classifySQLState maps a Postgres SQLSTATE onto the remote error taxonomy.
func classifySQLState(code string) model.ErrorCode {
	switch code {
	case "23505":
		return model.CodeAlreadyExists
	case "40001", "40P01":
		return model.CodeAborted
	case "57014":
		return model.CodeCancelled
	case "57P01", "57P02", "57P03":
		return model.CodeUnavailable
	case "42501":
		return model.CodePermissionDenied
	case "42P01", "42703":
		return model.CodeFailedPrecondition
	}

	switch {
	case strings.HasPrefix(code, "08"):
		return model.CodeUnavailable
	case strings.HasPrefix(code, "53"):
		return model.CodeResourceExhausted
	case strings.HasPrefix(code, "22"), strings.HasPrefix(code, "23"):
		return model.CodeInvalidArgument
	case strings.HasPrefix(code, "28"):
		return model.CodeUnauthenticated
	}

	return model.CodeInternal
}
