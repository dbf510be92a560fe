package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// FileName is the database file inside the backend's database directory.
const FileName = "telesync.db"

// DB wraps the backend's SQLite message database.
type DB struct {
	*sql.DB
}

// pragmas are applied to every connection. Foreign keys must be on for the
// peer cascades in the schema.
const pragmas = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_synchronous=NORMAL"

// Open opens the database at path, creating the file when missing.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?"+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{db}, nil
}
