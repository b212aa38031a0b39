package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for problems and reviews.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "grind.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	// Reviews cascade-delete with their problem.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Problems ---

const problemColumns = "id, external_id, title, difficulty, url, notes, date_added, review_count, next_review"

// SaveProblem inserts a new problem and returns it with its assigned ID.
func (s *Store) SaveProblem(p Problem) (Problem, error) {
	var nextReview any
	if p.NextReview != nil {
		nextReview = p.NextReview.UTC().Format(time.RFC3339)
	}
	res, err := s.db.Exec(`
		INSERT INTO problems (external_id, title, difficulty, url, notes, date_added, review_count, next_review)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ExternalID, p.Title, p.Difficulty, p.URL, p.Notes,
		p.DateAdded.UTC().Format(time.RFC3339), p.ReviewCount, nextReview,
	)
	if err != nil {
		return Problem{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Problem{}, err
	}
	return s.GetProblem(id)
}

// GetProblem returns the problem with the given ID, or ErrNotFound.
func (s *Store) GetProblem(id int64) (Problem, error) {
	row := s.db.QueryRow("SELECT "+problemColumns+" FROM problems WHERE id = ?", id)
	p, err := scanProblem(row)
	if err == sql.ErrNoRows {
		return Problem{}, ErrNotFound
	}
	return p, err
}

// ListProblems returns all saved problems, newest first.
func (s *Store) ListProblems() ([]Problem, error) {
	rows, err := s.db.Query("SELECT " + problemColumns + " FROM problems ORDER BY date_added DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProblems(rows)
}

// ListDueProblems returns problems whose next review is at or before now,
// most overdue first.
func (s *Store) ListDueProblems(now time.Time) ([]Problem, error) {
	rows, err := s.db.Query(`
		SELECT `+problemColumns+` FROM problems
		WHERE next_review IS NOT NULL AND next_review <= ?
		ORDER BY next_review ASC`, now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProblems(rows)
}

// UpdateNotes replaces the notes on a problem.
func (s *Store) UpdateNotes(id int64, notes string) (Problem, error) {
	res, err := s.db.Exec("UPDATE problems SET notes = ? WHERE id = ?", notes, id)
	if err != nil {
		return Problem{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Problem{}, err
	}
	if n == 0 {
		return Problem{}, ErrNotFound
	}
	return s.GetProblem(id)
}

// DeleteProblem removes a problem and, via cascade, its reviews.
func (s *Store) DeleteProblem(id int64) error {
	res, err := s.db.Exec("DELETE FROM problems WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Reviews ---

// RecordReview appends a review for the problem and updates the problem's
// review count and next review date in one transaction. Either both writes
// land or neither does. Returns ErrNotFound when the problem does not exist;
// nothing is written in that case.
func (s *Store) RecordReview(problemID int64, confidence int, notes string, nextReview time.Time) (Review, Problem, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Review{}, Problem{}, fmt.Errorf("beginning review transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM problems WHERE id = ?", problemID).Scan(&exists); err != nil {
		return Review{}, Problem{}, err
	}
	if exists == 0 {
		return Review{}, Problem{}, ErrNotFound
	}

	now := time.Now().UTC()
	res, err := tx.Exec(`
		INSERT INTO reviews (problem_id, confidence, notes, created_at)
		VALUES (?, ?, ?, ?)`,
		problemID, confidence, notes, now.Format(time.RFC3339),
	)
	if err != nil {
		return Review{}, Problem{}, fmt.Errorf("inserting review: %w", err)
	}
	reviewID, err := res.LastInsertId()
	if err != nil {
		return Review{}, Problem{}, err
	}

	if _, err := tx.Exec(`
		UPDATE problems SET review_count = review_count + 1, next_review = ?
		WHERE id = ?`,
		nextReview.UTC().Format(time.RFC3339), problemID,
	); err != nil {
		return Review{}, Problem{}, fmt.Errorf("updating problem: %w", err)
	}

	row := tx.QueryRow("SELECT "+problemColumns+" FROM problems WHERE id = ?", problemID)
	p, err := scanProblem(row)
	if err != nil {
		return Review{}, Problem{}, err
	}

	if err := tx.Commit(); err != nil {
		return Review{}, Problem{}, fmt.Errorf("committing review: %w", err)
	}

	review := Review{
		ID:         reviewID,
		ProblemID:  problemID,
		Confidence: confidence,
		Notes:      notes,
		CreatedAt:  now,
	}
	return review, p, nil
}

// ListReviews returns all reviews for a problem, newest first.
func (s *Store) ListReviews(problemID int64) ([]Review, error) {
	rows, err := s.db.Query(`
		SELECT id, problem_id, confidence, notes, created_at
		FROM reviews WHERE problem_id = ?
		ORDER BY created_at DESC, id DESC`, problemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Review
	for rows.Next() {
		var r Review
		var createdAt string
		if err := rows.Scan(&r.ID, &r.ProblemID, &r.Confidence, &r.Notes, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		r.CreatedAt = t
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProblem(row rowScanner) (Problem, error) {
	var p Problem
	var dateAdded string
	var nextReview sql.NullString
	if err := row.Scan(&p.ID, &p.ExternalID, &p.Title, &p.Difficulty, &p.URL, &p.Notes, &dateAdded, &p.ReviewCount, &nextReview); err != nil {
		return Problem{}, err
	}
	t, err := time.Parse(time.RFC3339, dateAdded)
	if err != nil {
		return Problem{}, fmt.Errorf("parsing date_added: %w", err)
	}
	p.DateAdded = t
	if nextReview.Valid {
		nr, err := time.Parse(time.RFC3339, nextReview.String)
		if err != nil {
			return Problem{}, fmt.Errorf("parsing next_review: %w", err)
		}
		p.NextReview = &nr
	}
	return p, nil
}

func collectProblems(rows *sql.Rows) ([]Problem, error) {
	var results []Problem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}
