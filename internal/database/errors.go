package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"rail-reservation/internal/apperror"
)

const pnrUniqueConstraint = "bookings_pnr_code_key"

// classify wraps a driver error with the apperror kind callers should
// see. msg describes the operation and is only ever logged.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505" && pgErr.ConstraintName == pnrUniqueConstraint:
			return apperror.Wrap(apperror.KindCodeGenerationExhausted, err, "could not allocate a unique PNR, please retry")
		case pgErr.Code == "23505":
			return apperror.Wrap(apperror.KindConstraintViolation, err, "record already exists")
		case pgErr.Code == "23503":
			return apperror.Wrap(apperror.KindConstraintViolation, err, "referenced record does not exist")
		case pgErr.Code == "23502", pgErr.Code == "23514":
			return apperror.Wrap(apperror.KindConstraintViolation, err, "record violates a data constraint")
		case strings.HasPrefix(pgErr.Code, "22"):
			return apperror.Wrap(apperror.KindValidation, err, "request contains an invalid value")
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01", strings.HasPrefix(pgErr.Code, "08"):
			return apperror.Wrap(apperror.KindStoreUnavailable, err, "database temporarily unavailable")
		}
		return apperror.Wrap(apperror.KindInternal, err, msg)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return apperror.Wrap(apperror.KindStoreUnavailable, err, "database temporarily unavailable")
	}

	return apperror.Wrap(apperror.KindInternal, err, msg)
}
