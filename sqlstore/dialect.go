package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

// Rebind rewrites ? placeholders to $n for PostgreSQL. Queries must not
// contain literal question marks.
func Rebind(driverName, query string) string {
	if driverName != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *Store) rebind(query string) string { return Rebind(s.driver, query) }

// IsUniqueViolation reports whether err is a unique or primary key conflict.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// IsTransient reports whether err is worth retrying: lost connections,
// serialization failures, deadlocks, lock contention and timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", // connection exception
			"53", // insufficient resources
			"57": // operator intervention
			return true
		}
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// classify maps driver errors onto the matching error types. Typed matching
// errors pass through untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isMatchingError(err) {
		return err
	}
	if IsTransient(err) {
		return &matching.StorageUnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isMatchingError(err error) bool {
	var (
		unavailable  *matching.StorageUnavailableError
		duplicate    *matching.DuplicateActionError
		invalid      *matching.InvalidActionError
		notFound     *matching.TargetNotFoundError
		notMatched   *matching.NotMatchedError
		inconsistent *matching.InconsistentMatchStateError
	)
	return errors.As(err, &unavailable) ||
		errors.As(err, &duplicate) ||
		errors.As(err, &invalid) ||
		errors.As(err, &notFound) ||
		errors.As(err, &notMatched) ||
		errors.As(err, &inconsistent)
}
