package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"commentwatch/internal/job"
	"commentwatch/internal/queue"
	"commentwatch/internal/store"
	"commentwatch/internal/youtube"
)

type fakeSource struct {
	comments []youtube.Comment
	err      error
}

func (f *fakeSource) FetchComments(_ context.Context, _ string) ([]youtube.Comment, error) {
	return f.comments, f.err
}

type fakeNotifier struct {
	accept bool
	sent   []string // recipients, in order
	bodies []string
}

func (f *fakeNotifier) Send(_ context.Context, to, _, htmlBody string) bool {
	f.sent = append(f.sent, to)
	f.bodies = append(f.bodies, htmlBody)
	return f.accept
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp("", "worker_test_*.db")
	if err != nil {
		t.Fatalf("tmp file: %v", err)
	}
	path := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(path) })

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testConfig() Config {
	return Config{FetchTimeout: 5 * time.Second, SendTimeout: 5 * time.Second}
}

// submit creates and enqueues a pending job the way the service does.
func submit(t *testing.T, st store.Store, q *queue.Queue, phrases []string) *job.Job {
	t.Helper()
	j := job.New("https://y/watch?v=X", phrases, "a@b.com")
	if err := st.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("create: %v", err)
	}
	q.Enqueue(j.ID)
	return j
}

// waitTerminal polls the store until the job reaches a terminal status.
func waitTerminal(t *testing.T, st store.Store, id string) *job.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		j, err := st.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if j.Status.Terminal() {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func TestWorker_CompletesMatchingJob(t *testing.T) {
	st := newTestStore(t)
	q := queue.New(st)
	source := &fakeSource{comments: []youtube.Comment{
		{ID: "c1", Author: "@ann", Text: "this is great, check 1:23"},
		{ID: "c2", Author: "@bob", Text: "unrelated"},
	}}
	notifier := &fakeNotifier{accept: true}

	w := New(st, q, source, notifier, testConfig())
	w.Start(context.Background())
	defer w.Stop()

	j := submit(t, st, q, []string{"great", "1:23"})
	got := waitTerminal(t, st, j.ID)

	if got.Status != job.StatusCompleted {
		t.Fatalf("expected completed, got %s (%+v)", got.Status, got.Result)
	}
	if got.Result == nil || got.Result.CommentCount == nil || *got.Result.CommentCount != 1 {
		t.Fatalf("expected comment_count=1, got %+v", got.Result)
	}
	if got.Result.EmailSent == nil || !*got.Result.EmailSent {
		t.Fatalf("expected email_sent=true, got %+v", got.Result)
	}
	if got.CompletionTime == nil || got.CompletionTime.Before(got.SubmissionTime) {
		t.Fatalf("bad completion time: %+v", got.CompletionTime)
	}

	if len(notifier.sent) != 1 || notifier.sent[0] != "a@b.com" {
		t.Fatalf("expected one email to a@b.com, got %v", notifier.sent)
	}
	// The report deep-links the detected timestamp.
	if body := notifier.bodies[0]; !strings.Contains(body, "t=83s") {
		t.Errorf("report missing t=83s deep link")
	}
}

func TestWorker_RetrievalErrorFailsJob(t *testing.T) {
	st := newTestStore(t)
	q := queue.New(st)
	source := &fakeSource{err: errors.New("video unavailable")}
	notifier := &fakeNotifier{accept: true}

	w := New(st, q, source, notifier, testConfig())
	w.Start(context.Background())
	defer w.Stop()

	j := submit(t, st, q, []string{"great"})
	got := waitTerminal(t, st, j.ID)

	if got.Status != job.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Result == nil || got.Result.ErrorMessage == "" {
		t.Fatal("expected a non-empty error message")
	}
	if got.Result.CommentCount != nil {
		t.Fatal("failed job must not carry a comment count")
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("no email expected on retrieval failure, got %v", notifier.sent)
	}
}

func TestWorker_NotifierFailureStillCompletes(t *testing.T) {
	st := newTestStore(t)
	q := queue.New(st)
	source := &fakeSource{comments: []youtube.Comment{
		{ID: "c1", Text: "this is great"},
	}}
	notifier := &fakeNotifier{accept: false}

	w := New(st, q, source, notifier, testConfig())
	w.Start(context.Background())
	defer w.Stop()

	j := submit(t, st, q, []string{"great"})
	got := waitTerminal(t, st, j.ID)

	if got.Status != job.StatusCompleted {
		t.Fatalf("delivery failure must not fail the job, got %s", got.Status)
	}
	if got.Result.EmailSent == nil || *got.Result.EmailSent {
		t.Fatalf("expected email_sent=false, got %+v", got.Result)
	}
	if got.Result.CommentCount == nil || *got.Result.CommentCount != 1 {
		t.Fatalf("expected comment_count=1, got %+v", got.Result)
	}
}

func TestWorker_ZeroMatchesCompletesWithoutEmail(t *testing.T) {
	st := newTestStore(t)
	q := queue.New(st)
	source := &fakeSource{comments: []youtube.Comment{
		{ID: "c1", Text: "unrelated"},
	}}
	notifier := &fakeNotifier{accept: true}

	w := New(st, q, source, notifier, testConfig())
	w.Start(context.Background())
	defer w.Stop()

	j := submit(t, st, q, []string{"great"})
	got := waitTerminal(t, st, j.ID)

	if got.Status != job.StatusCompleted {
		t.Fatalf("zero matches is a valid completion, got %s", got.Status)
	}
	if *got.Result.CommentCount != 0 {
		t.Fatalf("expected comment_count=0, got %d", *got.Result.CommentCount)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("no email expected without matches, got %v", notifier.sent)
	}
}

// One bad job must not block the ones behind it.
func TestWorker_LoopSurvivesFailedJob(t *testing.T) {
	st := newTestStore(t)
	q := queue.New(st)
	source := &flakySource{failFirst: true}
	notifier := &fakeNotifier{accept: true}

	w := New(st, q, source, notifier, testConfig())
	w.Start(context.Background())
	defer w.Stop()

	bad := submit(t, st, q, []string{"great"})
	good := submit(t, st, q, []string{"great"})

	if got := waitTerminal(t, st, bad.ID); got.Status != job.StatusFailed {
		t.Fatalf("expected first job failed, got %s", got.Status)
	}
	if got := waitTerminal(t, st, good.ID); got.Status != job.StatusCompleted {
		t.Fatalf("expected second job completed, got %s", got.Status)
	}
}

func TestWorker_ProcessesInSubmissionOrder(t *testing.T) {
	st := newTestStore(t)
	q := queue.New(st)
	source := &orderedSource{}
	notifier := &fakeNotifier{accept: true}

	urls := []string{
		"https://y/watch?v=A",
		"https://y/watch?v=B",
		"https://y/watch?v=C",
	}
	var jobs []*job.Job
	for _, u := range urls {
		j := job.New(u, []string{"anything"}, "a@b.com")
		if err := st.CreateJob(context.Background(), j); err != nil {
			t.Fatalf("create: %v", err)
		}
		q.Enqueue(j.ID)
		jobs = append(jobs, j)
	}

	w := New(st, q, source, notifier, testConfig())
	w.Start(context.Background())
	defer w.Stop()

	for _, j := range jobs {
		waitTerminal(t, st, j.ID)
	}
	if len(source.order) != len(urls) {
		t.Fatalf("expected %d fetches, got %d", len(urls), len(source.order))
	}
	for i, u := range urls {
		if source.order[i] != u {
			t.Fatalf("out of order at %d: %s", i, source.order[i])
		}
	}
}

type flakySource struct {
	failFirst bool
	calls     int
}

func (f *flakySource) FetchComments(_ context.Context, _ string) ([]youtube.Comment, error) {
	f.calls++
	if f.failFirst && f.calls == 1 {
		return nil, errors.New("transient failure")
	}
	return []youtube.Comment{{ID: "c1", Text: "this is great"}}, nil
}

type orderedSource struct {
	order []string
}

func (o *orderedSource) FetchComments(_ context.Context, videoURL string) ([]youtube.Comment, error) {
	o.order = append(o.order, videoURL)
	return nil, nil
}
