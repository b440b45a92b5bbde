package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Postgres class 23 integrity-constraint violation for duplicate keys.
const uniqueViolationCode = "23505"

// UniqueViolation reports whether err is a duplicate-key violation, returning
// the violated constraint name when the driver exposes it. Both Postgres
// drivers are checked because GORM connects through pgx while goose still
// reports lib/pq errors.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		if pgxErr.Code == uniqueViolationCode {
			return pgxErr.ConstraintName, true
		}
		return "", false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) == uniqueViolationCode {
			return pqErr.Constraint, true
		}
		return "", false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	return "", false
}
