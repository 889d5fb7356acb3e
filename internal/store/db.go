package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"
)

const (
	MemoryDSN  = ":memory:"
	dbFileName = "workd.duckdb"
)

// NewDB opens a DuckDB database. path is either MemoryDSN or a file path.
func NewDB(path string) (*sql.DB, error) {
	dsn := path
	if path == MemoryDSN {
		dsn = ""
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to duckdb %q: %w", path, err)
	}
	return db, nil
}

// DBPath returns the database location for a data folder; an empty folder
// means an in-memory database.
func DBPath(dataFolder string) (string, error) {
	if dataFolder == "" {
		return MemoryDSN, nil
	}
	if err := os.MkdirAll(dataFolder, 0o750); err != nil {
		return "", fmt.Errorf("failed to create data folder %s: %w", dataFolder, err)
	}
	return filepath.Join(dataFolder, dbFileName), nil
}
