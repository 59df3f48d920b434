package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/syssam/sqlcore"
)

// PostgreSQL SQLSTATE codes.
const (
	pgQueryCanceled       = "57014"
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers.
const (
	mysqlQueryTimeout           = 3024 // maximum statement execution time exceeded
	mysqlQueryInterrupted       = 1317
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// sqlState returns the SQLSTATE of a PostgreSQL driver error.
func sqlState(err error) (string, bool) {
	if e := (*pq.Error)(nil); errors.As(err, &e) {
		return string(e.Code), true
	}
	if e := (*pgconn.PgError)(nil); errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// mysqlNumber returns the error number of a MySQL driver error.
func mysqlNumber(err error) (uint16, bool) {
	if e := (*mysql.MySQLError)(nil); errors.As(err, &e) {
		return e.Number, true
	}
	return 0, false
}

// IsTimeout reports whether err is a deadline hit or a driver statement timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if code, ok := sqlState(err); ok {
		return code == pgQueryCanceled
	}
	if n, ok := mysqlNumber(err); ok {
		return n == mysqlQueryTimeout || n == mysqlQueryInterrupted
	}
	return containsAny(err.Error(),
		"canceling statement due to statement timeout", // Postgres (string fallback)
		"Query execution was interrupted",              // MySQL (string fallback)
	)
}

// Constraint returns the kind of constraint err violated, or "".
func Constraint(err error) string {
	if err == nil {
		return ""
	}
	if code, ok := sqlState(err); ok {
		switch code {
		case pgUniqueViolation:
			return sqlcore.ConstraintUnique
		case pgForeignKeyViolation:
			return sqlcore.ConstraintForeignKey
		case pgCheckViolation:
			return sqlcore.ConstraintCheck
		}
		return ""
	}
	if n, ok := mysqlNumber(err); ok {
		switch n {
		case mysqlDuplicateEntry:
			return sqlcore.ConstraintUnique
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return sqlcore.ConstraintForeignKey
		case mysqlCheckConstraintViolate:
			return sqlcore.ConstraintCheck
		}
		return ""
	}
	// Fallback to string matching for drivers without typed errors.
	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "violates unique constraint", "Error 1062", "Violation of UNIQUE KEY"):
		return sqlcore.ConstraintUnique
	case containsAny(msg, "FOREIGN KEY constraint failed", "violates foreign key constraint", "Error 1451", "Error 1452"):
		return sqlcore.ConstraintForeignKey
	case containsAny(msg, "CHECK constraint failed", "violates check constraint", "Error 3819"):
		return sqlcore.ConstraintCheck
	}
	return ""
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
