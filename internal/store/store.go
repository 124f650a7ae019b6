// Package store keeps a history of citation reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/casecite/internal/model"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a report ID is unknown
var ErrNotFound = errors.New("report not found")

// timeLayout sorts lexicographically in chronological order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store handles persistence of reports
type Store struct {
	db *sql.DB
}

// ReportSummary is one row of the report history
type ReportSummary struct {
	ID           string
	Source       string
	CheckedAt    time.Time
	Total        int
	Verified     int
	Hallucinated int
	Unverified   int
}

// DefaultPath returns ~/.casecite/history.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".casecite", "history.db"), nil
}

// Open opens (creating if needed) the SQLite database at path
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		checked_at TEXT NOT NULL,
		total INTEGER NOT NULL,
		verified INTEGER NOT NULL,
		hallucinated INTEGER NOT NULL,
		unverified INTEGER NOT NULL,
		body TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_checked ON reports(checked_at DESC);
	CREATE INDEX IF NOT EXISTS idx_reports_source ON reports(source);

	CREATE TABLE IF NOT EXISTS citations (
		report_id TEXT NOT NULL,
		citation TEXT NOT NULL,
		status TEXT NOT NULL,
		canonical_name TEXT,
		FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_citations_citation ON citations(citation);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveReport stores a report and its distinct citations, replacing any report
// with the same ID
func (s *Store) SaveReport(ctx context.Context, r *model.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM citations WHERE report_id = ?`, r.ID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (id, source, checked_at, total, verified, hallucinated, unverified, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			checked_at = excluded.checked_at,
			total = excluded.total,
			verified = excluded.verified,
			hallucinated = excluded.hallucinated,
			unverified = excluded.unverified,
			body = excluded.body
	`, r.ID, r.Source, r.CheckedAt.UTC().Format(timeLayout), r.Summary.Total, r.Summary.Verified,
		r.Summary.Hallucinated, r.Summary.Unverified, string(body))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO citations (report_id, citation, status, canonical_name) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, g := range r.Cases {
		d := g.Display
		var canonical sql.NullString
		if d.CanonicalCaseName != nil {
			canonical = sql.NullString{String: *d.CanonicalCaseName, Valid: true}
		}
		for _, c := range g.Citations {
			if _, err := stmt.ExecContext(ctx, r.ID, c, string(d.Status), canonical); err != nil {
				return fmt.Errorf("insert citation: %w", err)
			}
		}
	}

	return tx.Commit()
}

// ListReports returns the most recent reports first
func (s *Store) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, checked_at, total, verified, hallucinated, unverified
		FROM reports
		ORDER BY checked_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var rs ReportSummary
		var checked string
		if err := rows.Scan(&rs.ID, &rs.Source, &checked, &rs.Total, &rs.Verified, &rs.Hallucinated, &rs.Unverified); err != nil {
			return nil, err
		}
		if rs.CheckedAt, err = time.Parse(timeLayout, checked); err != nil {
			return nil, fmt.Errorf("parse checked_at: %w", err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// GetReport loads a stored report by ID
func (s *Store) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var r model.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// CitationHistory counts how often a citation was seen with each status
func (s *Store) CitationHistory(ctx context.Context, citation string) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM citations WHERE citation = ? GROUP BY status
	`, citation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}
