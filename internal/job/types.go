package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidTransition = errors.New("invalid status transition")

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to "to" is legal.
// The only legal path is pending -> processing -> {completed|failed}.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Result is set exactly once, when a job reaches a terminal status.
// CommentCount and EmailSent are present for completed jobs,
// ErrorMessage for failed ones.
type Result struct {
	CommentCount *int   `json:"comment_count,omitempty"`
	EmailSent    *bool  `json:"email_sent,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type Job struct {
	ID             string     `json:"id"`
	VideoURL       string     `json:"video_url"`
	Phrases        []string   `json:"phrases"`
	Email          string     `json:"email"`
	Status         Status     `json:"status"`
	SubmissionTime time.Time  `json:"submission_time"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`
	Result         *Result    `json:"result,omitempty"`
}

// New builds a pending job with a fresh id and submission timestamp.
func New(videoURL string, phrases []string, email string) *Job {
	return &Job{
		ID:             uuid.New().String(),
		VideoURL:       videoURL,
		Phrases:        phrases,
		Email:          email,
		Status:         StatusPending,
		SubmissionTime: time.Now().UTC(),
	}
}

// MarkProcessing transitions the job from pending to processing.
func (j *Job) MarkProcessing() error {
	if !j.Status.CanTransition(StatusProcessing) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusProcessing)
	}
	j.Status = StatusProcessing
	return nil
}

// Complete transitions the job from processing to completed and records
// the result.
func (j *Job) Complete(commentCount int, emailSent bool) error {
	if !j.Status.CanTransition(StatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusCompleted)
	}
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.CompletionTime = &now
	j.Result = &Result{CommentCount: &commentCount, EmailSent: &emailSent}
	return nil
}

// Fail transitions the job from processing to failed and records the
// error message.
func (j *Job) Fail(msg string) error {
	if !j.Status.CanTransition(StatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusFailed)
	}
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.CompletionTime = &now
	j.Result = &Result{ErrorMessage: msg}
	return nil
}

// Requeue returns an interrupted processing job to pending. This is the
// crash-recovery path only; no other code moves a job backwards.
func (j *Job) Requeue() error {
	if j.Status != StatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusPending)
	}
	j.Status = StatusPending
	return nil
}
