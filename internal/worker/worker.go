// Package worker runs the single background loop that executes jobs:
// dequeue one id, claim it, fetch comments, match, notify, persist the
// terminal state. Exactly one job is in flight at a time, which keeps
// every store mutation serialized and resource usage bounded.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"commentwatch/internal/job"
	"commentwatch/internal/mail"
	"commentwatch/internal/match"
	"commentwatch/internal/queue"
	"commentwatch/internal/store"
	"commentwatch/internal/youtube"
)

// CommentSource supplies the raw comments of a video. Any error is a
// retrieval failure and fails the job.
type CommentSource interface {
	FetchComments(ctx context.Context, videoURL string) ([]youtube.Comment, error)
}

// Notifier attempts delivery of one message. It reports failure via the
// boolean and never aborts a job.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) bool
}

type Config struct {
	// FetchTimeout bounds one comment-retrieval call so a stuck
	// collaborator cannot stall the queue forever.
	FetchTimeout time.Duration
	// SendTimeout bounds one notification attempt.
	SendTimeout time.Duration
}

type Worker struct {
	store    store.Store
	queue    *queue.Queue
	source   CommentSource
	notifier Notifier
	cfg      Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(st store.Store, q *queue.Queue, source CommentSource, notifier Notifier, cfg Config) *Worker {
	return &Worker{
		store:    st,
		queue:    q,
		source:   source,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop cancels the loop and waits for the in-flight job to wind down.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		id, err := w.queue.Dequeue(ctx)
		if err != nil {
			slog.Info("worker stopping", "reason", err)
			return
		}
		w.run(ctx, id)
	}
}

// run executes one job from claim to terminal state. Errors are caught
// here; nothing a single job does may kill the loop.
func (w *Worker) run(ctx context.Context, id string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing job", "job_id", id, "panic", r)
			w.writeTerminal(ctx, id, func(j *job.Job) error {
				return j.Fail(fmt.Sprintf("internal error: %v", r))
			})
		}
	}()

	j, err := w.store.UpdateJob(ctx, id, (*job.Job).MarkProcessing)
	if err != nil {
		// A terminal or missing row cannot be claimed; log and move on.
		slog.Error("failed to claim job", "job_id", id, "error", err)
		return
	}
	slog.Info("processing job", "job_id", id, "video_url", j.VideoURL)

	count, sent, perr := w.process(ctx, j)
	if perr != nil {
		slog.Error("job failed", "job_id", id, "error", perr)
		w.writeTerminal(ctx, id, func(j *job.Job) error {
			return j.Fail(perr.Error())
		})
		return
	}

	w.writeTerminal(ctx, id, func(j *job.Job) error {
		return j.Complete(count, sent)
	})
	slog.Info("job completed", "job_id", id, "comment_count", count, "email_sent", sent)
}

// process runs the retrieval/match/notify pipeline for one job and
// returns the matching comment count and whether the notification went
// out. Only retrieval failures return an error.
func (w *Worker) process(ctx context.Context, j *job.Job) (int, bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	comments, err := w.source.FetchComments(fetchCtx, j.VideoURL)
	if err != nil {
		return 0, false, fmt.Errorf("failed to fetch comments: %w", err)
	}

	matches := match.FilterComments(comments, j.Phrases, j.VideoURL)
	if len(matches) == 0 {
		// Zero matches is a valid result; nothing to report, no email.
		return 0, false, nil
	}

	body, err := mail.RenderReport(j.VideoURL, j.Phrases, matches, time.Now())
	if err != nil {
		slog.Error("failed to render report", "job_id", j.ID, "error", err)
		return len(matches), false, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()
	sent := w.notifier.Send(sendCtx, j.Email, mail.Subject(j.Phrases), body)

	return len(matches), sent, nil
}

const (
	terminalWriteAttempts = 5
	terminalWriteBackoff  = time.Second
)

// writeTerminal persists a terminal transition, retrying with doubling
// backoff. Giving up leaves the row in processing so startup recovery
// re-runs the job instead of losing it.
func (w *Worker) writeTerminal(ctx context.Context, id string, mutate func(*job.Job) error) {
	backoff := terminalWriteBackoff
	var err error
	for attempt := 1; attempt <= terminalWriteAttempts; attempt++ {
		if _, err = w.store.UpdateJob(ctx, id, mutate); err == nil {
			return
		}
		if attempt == terminalWriteAttempts {
			break
		}
		slog.Warn("terminal write failed, retrying",
			"job_id", id, "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			slog.Error("terminal write abandoned on shutdown, job will be recovered", "job_id", id)
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	slog.Error("terminal write failed permanently, job left for recovery", "job_id", id, "error", err)
}
