package db

import (
	"database/sql"
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schemaFS embed.FS

const driverName = "sqlite3_socialfeed"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// Open opens (creating if needed) the SQLite database at path and applies the
// embedded schema. Foreign keys are switched on per connection through the DSN,
// and every connection gets a Unicode-aware fold() for case-insensitive search.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create database dir")
	}
	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func dsn(path string) string {
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

// migrate applies schema.sql. Every statement is idempotent.
func migrate(db *sql.DB) error {
	sqlBytes, err := fs.ReadFile(schemaFS, "schema.sql")
	if err != nil {
		return errors.Wrap(err, "read schema")
	}
	if _, err := db.Exec(string(sqlBytes)); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}
