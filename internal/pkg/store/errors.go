package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/paulexconde/surveysense/pkg/fault"
)

// Postgres SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// translateError maps driver errors onto the fault sentinels. Unrecognized
// errors are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fault.ErrNotFound
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fault.ErrUniqueViolation
		case pgForeignKeyViolation:
			return fault.ErrForeignKeyViolation
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fault.ErrUniqueViolation
		case sqlite3.ErrConstraintForeignKey:
			return fault.ErrForeignKeyViolation
		case sqlite3.ErrConstraintTrigger:
			// ON DELETE RESTRICT is enforced as a trigger.
			if strings.Contains(liteErr.Error(), "FOREIGN KEY") {
				return fault.ErrForeignKeyViolation
			}
		}
	}

	return err
}
