package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"commentwatch/internal/common"
	"commentwatch/internal/job"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("database connection established")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	q := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		video_url TEXT NOT NULL,
		phrases JSONB NOT NULL,
		email TEXT NOT NULL,
		status TEXT NOT NULL,
		submission_time TIMESTAMPTZ NOT NULL,
		completion_time TIMESTAMPTZ,
		comment_count INTEGER,
		email_sent BOOLEAN,
		error_message TEXT
	)
	`
	_, err := s.pool.Exec(ctx, q)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// withTx executes fn inside a transaction, rolling back on error.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Error("failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, j *job.Job) error {
	phrases, err := json.Marshal(j.Phrases)
	if err != nil {
		return fmt.Errorf("failed to encode phrases: %w", err)
	}

	query := `
		INSERT INTO jobs (id, video_url, phrases, email, status, submission_time, completion_time, comment_count, email_sent, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.pool.Exec(ctx, query,
		j.ID, j.VideoURL, phrases, j.Email, string(j.Status),
		j.SubmissionTime, j.CompletionTime,
		resultCount(j), resultSent(j), resultError(j))
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

const selectJobSQL = `
	SELECT id, video_url, phrases, email, status, submission_time, completion_time, comment_count, email_sent, error_message
	FROM jobs
	WHERE id = $1
`

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*job.Job, error) {
	j, err := scanPostgresJob(s.pool.QueryRow(ctx, selectJobSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, id string, mutate func(*job.Job) error) (*job.Job, error) {
	var out *job.Job
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		j, err := scanPostgresJob(tx.QueryRow(ctx, selectJobSQL+" FOR UPDATE", id))
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read job: %w", err)
		}

		if err := mutate(j); err != nil {
			return err
		}

		phrases, err := json.Marshal(j.Phrases)
		if err != nil {
			return fmt.Errorf("failed to encode phrases: %w", err)
		}
		query := `
			UPDATE jobs
			SET video_url = $2, phrases = $3, email = $4, status = $5, completion_time = $6, comment_count = $7, email_sent = $8, error_message = $9
			WHERE id = $1
		`
		_, err = tx.Exec(ctx, query,
			j.ID, j.VideoURL, phrases, j.Email, string(j.Status),
			j.CompletionTime, resultCount(j), resultSent(j), resultError(j))
		if err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}
		out = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListUnfinished(ctx context.Context) ([]*job.Job, error) {
	query := `
		SELECT id, video_url, phrases, email, status, submission_time, completion_time, comment_count, email_sent, error_message
		FROM jobs
		WHERE status = ANY($1)
		ORDER BY submission_time
	`
	rows, err := s.pool.Query(ctx, query,
		[]string{string(job.StatusPending), string(job.StatusProcessing)})
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished jobs: %w", err)
	}
	defer rows.Close()

	var out []*job.Job
	for rows.Next() {
		j, err := scanPostgresJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanPostgresJob(row pgx.Row) (*job.Job, error) {
	j := &job.Job{}
	var (
		phrases      []byte
		status       string
		commentCount *int
		emailSent    *bool
		errorMessage *string
	)
	if err := row.Scan(&j.ID, &j.VideoURL, &phrases, &j.Email, &status,
		&j.SubmissionTime, &j.CompletionTime, &commentCount, &emailSent, &errorMessage); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(phrases, &j.Phrases); err != nil {
		return nil, fmt.Errorf("failed to decode phrases: %w", err)
	}
	j.Status = job.Status(status)
	switch j.Status {
	case job.StatusCompleted:
		j.Result = &job.Result{CommentCount: commentCount, EmailSent: emailSent}
	case job.StatusFailed:
		if errorMessage != nil {
			j.Result = &job.Result{ErrorMessage: *errorMessage}
		} else {
			j.Result = &job.Result{}
		}
	}
	return j, nil
}
