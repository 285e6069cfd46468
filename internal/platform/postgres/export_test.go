package postgres

import "github.com/jackc/pgx/v5/pgconn"

func newPgErrorForTest(code string) *pgconn.PgError {
	return &pgconn.PgError{Code: code, Message: "test error"}
}
