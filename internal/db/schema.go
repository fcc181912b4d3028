package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	TableAccounts   = "accounts"
	TableCharacters = "characters"
)

// Account and character names compare case-insensitively on both engines:
// MySQL through its default collation, SQLite through COLLATE NOCASE.
var schemas = map[string][]string{
	"mysql": {
		`CREATE TABLE IF NOT EXISTS accounts (
			account_name VARCHAR(30) NOT NULL PRIMARY KEY,
			password_hash VARCHAR(72) NOT NULL,
			is_admin TINYINT(1) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		) DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS characters (
			char_name VARCHAR(20) NOT NULL PRIMARY KEY,
			account_name VARCHAR(30) NOT NULL,
			seq INT NOT NULL,
			level INT NOT NULL,
			race INT NOT NULL,
			class INT NOT NULL,
			is_active TINYINT(1) NOT NULL,
			INDEX idx_characters_account (account_name, seq),
			FOREIGN KEY (account_name) REFERENCES accounts (account_name) ON DELETE CASCADE
		) DEFAULT CHARSET=utf8mb4`,
	},
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS accounts (
			account_name TEXT NOT NULL PRIMARY KEY COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS characters (
			char_name TEXT NOT NULL PRIMARY KEY COLLATE NOCASE,
			account_name TEXT NOT NULL COLLATE NOCASE,
			seq INTEGER NOT NULL,
			level INTEGER NOT NULL,
			race INTEGER NOT NULL,
			class INTEGER NOT NULL,
			is_active INTEGER NOT NULL,
			FOREIGN KEY (account_name) REFERENCES accounts (account_name) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_characters_account ON characters (account_name, seq)`,
	},
}

// EnsureSchema creates the service tables when they are missing.
func EnsureSchema(ctx context.Context, d *sqlx.DB) error {
	stmts, ok := schemas[d.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", d.DriverName())
	}
	for _, s := range stmts {
		if _, err := d.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// DropSchema removes the service tables, characters first.
func DropSchema(ctx context.Context, d *sqlx.DB) error {
	for _, t := range []string{TableCharacters, TableAccounts} {
		if _, err := d.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return nil
}
