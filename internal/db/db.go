package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wowserver/internal/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var xdb *sqlx.DB

// Init opens the configured database, pings it and keeps it as the process-wide handle.
func Init(cfg *config.Config) error {
	d, err := Open(cfg)
	if err != nil {
		return err
	}
	xdb = d
	return nil
}

// Open connects to the configured driver without touching the package handle.
func Open(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.DBDriver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	d, err := sqlx.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == "sqlite" {
		d.SetMaxOpenConns(1)
	} else {
		d.SetConnMaxLifetime(4 * time.Minute)
		d.SetMaxOpenConns(32)
		d.SetMaxIdleConns(8)
	}
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.DBDriver, err)
	}
	return d, nil
}

func Close() {
	if xdb != nil {
		_ = xdb.Close()
	}
}

func DB() *sqlx.DB { return xdb }

// Tx runs fn inside a transaction, rolling back on error or panic.
func Tx(ctx context.Context, d *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// helpers
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// InClause builds "field IN (?,...)" with its arguments. No values matches no rows.
func InClause[T any](field string, vals []T) (string, []any) {
	if len(vals) == 0 {
		return "1=0", nil
	}
	q := fmt.Sprintf("%s IN (%s)", field, placeholders(len(vals)))
	args := make([]any, len(vals))
	for i := range vals {
		args[i] = any(vals[i])
	}
	return q, args
}
