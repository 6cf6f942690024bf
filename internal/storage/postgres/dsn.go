package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Describe renders a DSN for logs without its password.
func Describe(dsn string) string {
	cfg, err := pgconn.ParseConfig(dsn)
	if err != nil {
		return "unparseable dsn"
	}
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s", cfg.Host, cfg.Port, cfg.User, cfg.Database)
}
