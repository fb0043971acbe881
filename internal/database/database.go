// Package database provides the optional Postgres-backed durable store. It
// implements the same CRUD contracts as the in-memory stores, so the engine
// can swap it in transparently.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver
	"github.com/rs/zerolog/log"
)

// Database wraps the SQL connection shared by the repositories.
type Database struct {
	*sql.DB
}

// New opens and pings a Postgres connection.
func New(dsn string) (*Database, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Msg("database connection established")
	return &Database{DB: db}, nil
}

// Migrate creates the schema if missing.
func (d *Database) Migrate() error {
	_, err := d.Exec(`
CREATE TABLE IF NOT EXISTS datasources (
    id       TEXT PRIMARY KEY,
    name     TEXT NOT NULL,
    type     TEXT NOT NULL,
    url      TEXT NOT NULL,
    enabled  BOOLEAN NOT NULL DEFAULT TRUE,
    position SERIAL
);`)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (d *Database) Close() error { return d.DB.Close() }
