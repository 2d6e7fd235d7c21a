package dbx

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes that mean "try again": the transaction lost a race, not
// that the request was wrong.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// Classify maps low-level driver errors onto the store error taxonomy.
// Serialization failures, deadlocks and lock timeouts become
// common.ErrConcurrencyConflict, connection failures become
// common.ErrStoreUnavailable. Anything else is returned unchanged.
// The original error stays in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrConcurrencyConflict) || errors.Is(err, common.ErrStoreUnavailable) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == sqlStateSerializationFailure,
			pgErr.Code == sqlStateDeadlockDetected,
			pgErr.Code == sqlStateLockNotAvailable:
			return fmt.Errorf("%w: %w", common.ErrConcurrencyConflict, err)
		case strings.HasPrefix(pgErr.Code, "08"):
			// class 08: connection exception
			return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	}
	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	}
	return err
}

// IsRetryable reports whether err is worth one more attempt with the same
// arguments.
func IsRetryable(err error) bool {
	return errors.Is(Classify(err), common.ErrConcurrencyConflict)
}

// SetLockTimeout bounds how long the current transaction waits for row locks.
// It only applies to the enclosing transaction (SET LOCAL). A zero or negative
// timeout leaves the server default in place.
func SetLockTimeout(ctx context.Context, tx DBTX, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	// SET does not accept bind parameters.
	q := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
