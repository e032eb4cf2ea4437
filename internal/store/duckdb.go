// Package store keeps LogVision state in DuckDB: the pattern sets and the
// formatted series of analysis sessions.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog/log"
)

// Pragmas applied to every new connection.
var defaultPragmas = []string{
	"PRAGMA memory_limit='1GB'",
	"PRAGMA threads=4",
	"PRAGMA enable_progress_bar=false",
}

// openDB opens a DuckDB database at path. An empty path opens an in-memory
// database.
func openDB(path string) (*sql.DB, error) {
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		for _, pragma := range defaultPragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("executing %q: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	log.Debug().Str("path", path).Msg("duckdb opened")
	return db, nil
}

// withAppender runs fn with an Appender on table and flushes it.
func withAppender(ctx context.Context, db *sql.DB, table string, fn func(*duckdb.Appender) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", table)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		if err := fn(appender); err != nil {
			return err
		}
		return appender.Flush()
	})
}
