package server

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// JobRecord is the persisted view of one translation job.
type JobRecord struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Format      string     `json:"format"`
	TargetLang  string     `json:"target_lang"`
	SourceLang  string     `json:"source_lang,omitempty"`
	State       string     `json:"state"`
	Progress    float64    `json:"progress"`
	DoneUnits   int        `json:"done_units"`
	FailedUnits int        `json:"failed_units"`
	TotalUnits  int        `json:"total_units"`
	Error       string     `json:"error,omitempty"`
	OutputPath  string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store persists job records in SQLite so job history survives restarts.
type Store struct {
	db *sql.DB
}

// NewStore opens (and migrates) the job database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening job database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		format TEXT NOT NULL DEFAULT '',
		target_lang TEXT NOT NULL,
		source_lang TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'running',
		progress REAL NOT NULL DEFAULT 0,
		done_units INTEGER NOT NULL DEFAULT 0,
		failed_units INTEGER NOT NULL DEFAULT 0,
		total_units INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		output_path TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		completed_at DATETIME
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrating job database: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// ReapInterrupted marks jobs still recorded as running as aborted. Uploads
// are not re-runnable across restarts, so a fresh server calls this once at
// startup.
func (s *Store) ReapInterrupted() (int64, error) {
	res, err := s.db.Exec(
		`UPDATE jobs SET state = ?, error = 'interrupted by server restart', completed_at = CURRENT_TIMESTAMP WHERE state = ?`,
		"aborted", "running")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Create inserts a fresh running job.
func (s *Store) Create(r *JobRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, filename, format, target_lang, source_lang, state, total_units, output_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Filename, r.Format, r.TargetLang, r.SourceLang, r.State, r.TotalUnits, r.OutputPath)
	return err
}

// UpdateProgress records a progress snapshot.
func (s *Store) UpdateProgress(id string, progress float64, done, failed int) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET progress = ?, done_units = ?, failed_units = ? WHERE id = ?`,
		progress, done, failed, id)
	return err
}

// Finish records the terminal state of a job.
func (s *Store) Finish(id, state, errMsg, outputPath string) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET state = ?, error = ?, output_path = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?`,
		state, errMsg, outputPath, id)
	return err
}

// Get returns one job record.
func (s *Store) Get(id string) (*JobRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, filename, format, target_lang, source_lang, state, progress,
		       done_units, failed_units, total_units, error, output_path, created_at, completed_at
		FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// List returns job records, newest first.
func (s *Store) List(limit int) ([]*JobRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, filename, format, target_lang, source_lang, state, progress,
		       done_units, failed_units, total_units, error, output_path, created_at, completed_at
		FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*JobRecord, error) {
	var j JobRecord
	var completed sql.NullTime
	err := row.Scan(&j.ID, &j.Filename, &j.Format, &j.TargetLang, &j.SourceLang,
		&j.State, &j.Progress, &j.DoneUnits, &j.FailedUnits, &j.TotalUnits,
		&j.Error, &j.OutputPath, &j.CreatedAt, &completed)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		j.CompletedAt = &completed.Time
	}
	return &j, nil
}
