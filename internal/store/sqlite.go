package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"commentwatch/internal/common"
	"commentwatch/internal/job"
)

const jobColumns = "id, video_url, phrases, email, status, submission_time, completion_time, comment_count, email_sent, error_message"

type SQLiteStore struct {
	db *sql.DB

	// sqlite allows one writer at a time; serializing writers here
	// avoids SQLITE_BUSY churn under concurrent submits.
	mu sync.Mutex
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "commentwatch.db"
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	q := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		video_url TEXT NOT NULL,
		phrases TEXT NOT NULL,
		email TEXT NOT NULL,
		status TEXT NOT NULL,
		submission_time DATETIME NOT NULL,
		completion_time DATETIME,
		comment_count INTEGER,
		email_sent INTEGER,
		error_message TEXT
	);
	`
	_, err := s.db.Exec(q)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) CreateJob(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	phrases, err := json.Marshal(j.Phrases)
	if err != nil {
		return fmt.Errorf("failed to encode phrases: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs(`+jobColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.VideoURL, string(phrases), j.Email, string(j.Status),
		j.SubmissionTime.UTC(), nullTime(j.CompletionTime),
		resultCount(j), resultSent(j), resultError(j))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("job %s: %w", j.ID, common.ErrConflict)
		}
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanSQLiteJob(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}
	return j, nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, id string, mutate func(*job.Job) error) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanSQLiteJob(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	if err := mutate(j); err != nil {
		return nil, err
	}

	phrases, err := json.Marshal(j.Phrases)
	if err != nil {
		return nil, fmt.Errorf("failed to encode phrases: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET video_url=?, phrases=?, email=?, status=?, completion_time=?, comment_count=?, email_sent=?, error_message=? WHERE id=?`,
		j.VideoURL, string(phrases), j.Email, string(j.Status),
		nullTime(j.CompletionTime), resultCount(j), resultSent(j), resultError(j), j.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return j, nil
}

func (s *SQLiteStore) ListUnfinished(ctx context.Context) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (?, ?) ORDER BY submission_time, rowid`,
		string(job.StatusPending), string(job.StatusProcessing))
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished jobs: %w", err)
	}
	defer rows.Close()

	var out []*job.Job
	for rows.Next() {
		j, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteJob(row rowScanner) (*job.Job, error) {
	j := &job.Job{}
	var (
		phrases        string
		status         string
		completionTime sql.NullTime
		commentCount   sql.NullInt64
		emailSent      sql.NullBool
		errorMessage   sql.NullString
	)
	if err := row.Scan(&j.ID, &j.VideoURL, &phrases, &j.Email, &status,
		&j.SubmissionTime, &completionTime, &commentCount, &emailSent, &errorMessage); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(phrases), &j.Phrases); err != nil {
		return nil, fmt.Errorf("failed to decode phrases: %w", err)
	}
	j.Status = job.Status(status)
	if completionTime.Valid {
		t := completionTime.Time.UTC()
		j.CompletionTime = &t
	}
	j.Result = buildResult(j.Status, commentCount, emailSent, errorMessage)
	return j, nil
}

// buildResult reassembles the Result from its flat columns. Only
// terminal rows carry one.
func buildResult(status job.Status, count sql.NullInt64, sent sql.NullBool, msg sql.NullString) *job.Result {
	switch status {
	case job.StatusCompleted:
		c := int(count.Int64)
		b := sent.Bool
		return &job.Result{CommentCount: &c, EmailSent: &b}
	case job.StatusFailed:
		return &job.Result{ErrorMessage: msg.String}
	default:
		return nil
	}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func resultCount(j *job.Job) any {
	if j.Result == nil || j.Result.CommentCount == nil {
		return nil
	}
	return *j.Result.CommentCount
}

func resultSent(j *job.Job) any {
	if j.Result == nil || j.Result.EmailSent == nil {
		return nil
	}
	return *j.Result.EmailSent
}

func resultError(j *job.Job) any {
	if j.Result == nil || j.Result.ErrorMessage == "" {
		return nil
	}
	return j.Result.ErrorMessage
}
