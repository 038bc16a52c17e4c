package duckdb

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/regionmap/internal/classify"
	"github.com/inodb/regionmap/internal/region"
)

// Run describes one classification run.
type Run struct {
	ID         string
	Annotation string // annotation file path
	Variants   string // variant file path
	Assembly   string
	Precedence string
	CreatedAt  time.Time
}

// ChromosomeCounts holds the category counts of one chromosome.
type ChromosomeCounts struct {
	Label     string
	Accession string
	Counts    classify.Counts
}

// Classifications holds the category of each classified position of one
// chromosome.
type Classifications struct {
	Label      string
	Positions  []int64
	Categories []region.Category
}

// RecordRun stores a run with its counts and classifications and returns it
// with a fresh ID. The runs row is written last, and a failed write removes
// what was already stored, so Runs only lists complete runs.
func (s *Store) RecordRun(r Run, counts []ChromosomeCounts, cls []Classifications) (Run, error) {
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()

	if err := s.writeRun(r, counts, cls); err != nil {
		if derr := s.DeleteRun(r.ID); derr != nil {
			return Run{}, errors.Join(err, fmt.Errorf("remove partial run: %w", derr))
		}
		return Run{}, err
	}
	return r, nil
}

func (s *Store) writeRun(r Run, counts []ChromosomeCounts, cls []Classifications) error {
	if err := s.writeCounts(r.ID, counts); err != nil {
		return err
	}
	for _, c := range cls {
		if err := s.writeClassifications(r.ID, c.Label, c.Positions, c.Categories); err != nil {
			return fmt.Errorf("chromosome %s: %w", c.Label, err)
		}
	}

	_, err := s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Annotation, r.Variants, r.Assembly, r.Precedence, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// DeleteRun removes a run and everything recorded for it. Deleting an
// unknown run is not an error.
func (s *Store) DeleteRun(runID string) error {
	for _, table := range []string{"runs", "chromosome_counts", "variant_regions"} {
		if _, err := s.db.Exec(`DELETE FROM `+table+` WHERE run_id=?`, runID); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

// Runs lists all recorded runs, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id, annotation, variants, assembly, precedence, created_at
		FROM runs ORDER BY created_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Annotation, &r.Variants, &r.Assembly, &r.Precedence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// withAppender runs fn with an appender on table, flushing on success.
func (s *Store) withAppender(table string, fn func(*goduckdb.Appender) error) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// writeCounts batch-inserts the per-chromosome counts of a run.
func (s *Store) writeCounts(runID string, counts []ChromosomeCounts) error {
	if len(counts) == 0 {
		return nil
	}

	return s.withAppender("chromosome_counts", func(a *goduckdb.Appender) error {
		for _, cc := range counts {
			for _, cat := range region.Categories {
				if err := a.AppendRow(runID, cc.Label, cc.Accession, string(cat), int64(cc.Counts[cat])); err != nil {
					return fmt.Errorf("append counts for %s: %w", cc.Label, err)
				}
			}
		}
		return nil
	})
}

// writeClassifications batch-inserts the category of each classified
// position of one chromosome.
func (s *Store) writeClassifications(runID, label string, positions []int64, cats []region.Category) error {
	if len(positions) != len(cats) {
		return fmt.Errorf("%d positions but %d categories", len(positions), len(cats))
	}
	if len(positions) == 0 {
		return nil
	}

	return s.withAppender("variant_regions", func(a *goduckdb.Appender) error {
		for i, pos := range positions {
			if err := a.AppendRow(runID, label, pos, string(cats[i])); err != nil {
				return fmt.Errorf("append classification %s:%d: %w", label, pos, err)
			}
		}
		return nil
	})
}

// LookupCounts returns the per-chromosome counts of a run in insertion
// order of chromosomes.
func (s *Store) LookupCounts(runID string) ([]ChromosomeCounts, error) {
	rows, err := s.db.Query(`SELECT chrom, accession, category, count
		FROM chromosome_counts WHERE run_id=? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	byLabel := make(map[string]*ChromosomeCounts)
	var order []string
	for rows.Next() {
		var label, acc, cat string
		var n int64
		if err := rows.Scan(&label, &acc, &cat, &n); err != nil {
			return nil, fmt.Errorf("scan counts: %w", err)
		}
		cc, ok := byLabel[label]
		if !ok {
			cc = &ChromosomeCounts{Label: label, Accession: acc, Counts: classify.NewCounts()}
			byLabel[label] = cc
			order = append(order, label)
		}
		cc.Counts[region.Category(cat)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}

	out := make([]ChromosomeCounts, len(order))
	for i, label := range order {
		out[i] = *byLabel[label]
	}
	return out, nil
}

// CategoryTotals sums the counts of a run across chromosomes.
func (s *Store) CategoryTotals(runID string) (classify.Counts, error) {
	rows, err := s.db.Query(`SELECT category, CAST(SUM(count) AS BIGINT)
		FROM chromosome_counts WHERE run_id=? GROUP BY category`, runID)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	totals := classify.NewCounts()
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		totals[region.Category(cat)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate totals: %w", err)
	}
	return totals, nil
}

// PositionsIn returns the classified positions of one chromosome that fell
// in the given category, ascending.
func (s *Store) PositionsIn(runID, label string, cat region.Category) ([]int64, error) {
	rows, err := s.db.Query(`SELECT pos FROM variant_regions
		WHERE run_id=? AND chrom=? AND category=? ORDER BY pos`, runID, label, string(cat))
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var pos int64
		if err := rows.Scan(&pos); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return out, nil
}
