package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/choreboard/choreboard/internal/apperr"
)

type violation int

const (
	noViolation violation = iota
	uniqueViolation
	foreignKeyViolation
	notNullViolation
)

// MySQL server error numbers.
const (
	mysqlDupEntry        = 1062
	mysqlNoReferencedRow = 1452
	mysqlRowIsReferenced = 1451
	mysqlBadNull         = 1048
)

func classify(err error) violation {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return uniqueViolation
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return foreignKeyViolation
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return notNullViolation
		}
		// Primary result code only; fall back to the message.
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			msg := se.Error()
			switch {
			case strings.Contains(msg, "UNIQUE"):
				return uniqueViolation
			case strings.Contains(msg, "FOREIGN KEY"):
				return foreignKeyViolation
			case strings.Contains(msg, "NOT NULL"):
				return notNullViolation
			}
		}
		return noViolation
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDupEntry:
			return uniqueViolation
		case mysqlNoReferencedRow, mysqlRowIsReferenced:
			return foreignKeyViolation
		case mysqlBadNull:
			return notNullViolation
		}
	}
	return noViolation
}

// IsUniqueViolation reports whether err is a unique or primary key conflict.
func IsUniqueViolation(err error) bool {
	return classify(err) == uniqueViolation
}

// Classify turns recognized constraint violations into user-facing errors.
// Anything else is returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	switch classify(err) {
	case uniqueViolation:
		return apperr.Wrap(apperr.KindConflict, "duplicate entry", err)
	case foreignKeyViolation:
		return apperr.Wrap(apperr.KindValidation, "referenced record does not exist", err)
	case notNullViolation:
		return apperr.Wrap(apperr.KindValidation, "required field missing", err)
	}
	return err
}
