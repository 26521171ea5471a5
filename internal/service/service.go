// Package service is the thin façade the API layer talks to: Submit
// creates and enqueues a job, Status reads one back. Status never waits
// on the worker; it only reflects persisted state.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"commentwatch/internal/job"
	"commentwatch/internal/queue"
	"commentwatch/internal/store"
)

type Service struct {
	store store.Store
	queue *queue.Queue
}

func New(st store.Store, q *queue.Queue) *Service {
	return &Service{store: st, queue: q}
}

// Submit persists a new pending job and hands its id to the queue. The
// job is durable before the id ever reaches the worker.
func (s *Service) Submit(ctx context.Context, videoURL string, phrases []string, email string) (*job.Job, error) {
	j := job.New(videoURL, phrases, email)
	if err := s.store.CreateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	s.queue.Enqueue(j.ID)
	slog.Info("job submitted", "job_id", j.ID, "video_url", videoURL, "phrases", len(phrases))
	return j, nil
}

// Status returns the persisted job or common.ErrJobNotFound.
func (s *Service) Status(ctx context.Context, id string) (*job.Job, error) {
	return s.store.GetJob(ctx, id)
}
