package sqlrecord

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (creating if needed) a SQLite database ready for a
// DialectSQLite store. Use ":memory:" for throwaway stores.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc serializes writers; a single connection avoids busy errors.
	db.SetMaxOpenConns(1)
	return db, nil
}

// OpenPostgres opens a PostgreSQL database ready for a DialectPostgres
// store. The lib/pq driver registers through this package's import.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}
