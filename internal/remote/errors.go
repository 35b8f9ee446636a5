package remote

import (
	"context"
	"database/sql"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

// Postgres error codes with a stable meaning for callers.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidAuth         = "28000"
	codeInvalidPassword     = "28P01"
	codeInsufficientPriv    = "42501"
)

// mapPostgresError classifies err into the remote error taxonomy.
func mapPostgresError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.RemoteError{Kind: classifyPostgres(err), Op: op, Err: err}
}

func classifyPostgres(err error) domain.RemoteErrorKind {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.KindNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation, codeForeignKeyViolation:
			return domain.KindConflict
		case codeInvalidAuth, codeInvalidPassword, codeInsufficientPriv:
			return domain.KindAuthRequired
		}
		return domain.KindUnknown
	}
	if isNetwork(err) {
		return domain.KindNetworkUnreachable
	}
	return domain.KindUnknown
}

func isNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
