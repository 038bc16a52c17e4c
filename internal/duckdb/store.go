// Package duckdb stores classification results and caches built tilings.
// Tilings are cached as gob files (fast, pure Go).
// Per-chromosome counts and per-variant categories are stored in DuckDB
// (queryable, append-only).
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for classification results.
type Store struct {
	db *sql.DB
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// schema is applied on every Open; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR PRIMARY KEY,
		annotation VARCHAR,
		variants VARCHAR,
		assembly VARCHAR,
		precedence VARCHAR,
		created_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS chromosome_counts (
		run_id VARCHAR,
		chrom VARCHAR,
		accession VARCHAR,
		category VARCHAR,
		count BIGINT,
		PRIMARY KEY (run_id, chrom, category)
	)`,
	`CREATE TABLE IF NOT EXISTS variant_regions (
		run_id VARCHAR,
		chrom VARCHAR,
		pos BIGINT,
		category VARCHAR
	)`,
	`CREATE INDEX IF NOT EXISTS variant_regions_lookup ON variant_regions (run_id, chrom, category)`,
}

func (s *Store) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
