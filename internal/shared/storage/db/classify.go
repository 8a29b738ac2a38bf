package db

import (
	"context"
	"database/sql"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Failure reasons reported by Classify. They are used as metric labels.
const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonCanceled             = "canceled"
	ReasonLockTimeout          = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonCheckViolation       = "check_violation"
	ReasonUnavailable          = "unavailable"
	ReasonUnknown              = "unknown"
)

// Classify maps a storage error to a coarse reason string.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, sql.ErrConnDone):
		return ReasonUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return ReasonLockTimeout
		case "40001", "40P01":
			return ReasonSerializationFailure
		case "23505":
			return ReasonUniqueViolation
		case "23514":
			return ReasonCheckViolation
		case "57P01", "57P02", "57P03", "08000", "08003", "08006":
			return ReasonUnavailable
		}
		return ReasonUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ReasonUnavailable
	}
	return ReasonUnknown
}

// NotApplied reports whether err proves a single autocommit statement left no trace: the
// server rejected it, or it never reached the server. Cancellations and broken connections
// return false because the statement may have committed before the error surfaced.
func NotApplied(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}
