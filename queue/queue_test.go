package queue

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fetchResult struct {
	msg kafka.Message
	err error
}

// fakeReader serves a scripted sequence of fetches, then blocks until the
// caller's context is cancelled, like a real reader waiting on the broker.
type fakeReader struct {
	fetches chan fetchResult

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(script ...fetchResult) *fakeReader {
	ch := make(chan fetchResult, len(script))
	for _, f := range script {
		ch <- f
	}
	return &fakeReader{fetches: ch}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case f := <-r.fetches:
		return f.msg, f.err
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

// fakeJob counts runs and cancels the consumer after the last scripted one,
// so Consume returns instead of blocking on the next fetch.
type fakeJob struct {
	mu     sync.Mutex
	runs   int
	err    error
	stopAt int
	cancel context.CancelFunc
}

func (j *fakeJob) Run(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	if j.runs >= j.stopAt {
		j.cancel()
	}
	return j.err
}

func (j *fakeJob) runCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func TestConsumeCommitsAfterSuccessfulRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newFakeReader(fetchResult{msg: kafka.Message{Offset: 7}})
	job := &fakeJob{stopAt: 1, cancel: cancel}
	c := New(reader, job, testLogger())

	if err := c.Consume(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Consume() error = %v, want context.Canceled", err)
	}

	if got := job.runCount(); got != 1 {
		t.Errorf("job ran %d times, want 1", got)
	}
	if got := reader.commits(); len(got) != 1 || got[0] != 7 {
		t.Errorf("committed offsets = %v, want [7]", got)
	}
}

func TestConsumeLeavesFailedRunUnacknowledged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newFakeReader(fetchResult{msg: kafka.Message{Offset: 3}})
	job := &fakeJob{stopAt: 1, cancel: cancel, err: errors.New("run cancelled")}
	c := New(reader, job, testLogger())

	if err := c.Consume(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Consume() error = %v, want context.Canceled", err)
	}

	if got := reader.commits(); len(got) != 0 {
		t.Errorf("committed offsets = %v, want none after a failed run", got)
	}
}

func TestConsumeSurvivesTransportErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newFakeReader(
		fetchResult{err: errors.New("broker unreachable")},
		fetchResult{msg: kafka.Message{Offset: 12}},
	)
	job := &fakeJob{stopAt: 1, cancel: cancel}
	c := New(reader, job, testLogger())
	c.backoff = time.Millisecond

	if err := c.Consume(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Consume() error = %v, want context.Canceled", err)
	}

	if got := job.runCount(); got != 1 {
		t.Errorf("job ran %d times, want 1 after the transport error", got)
	}
	if got := reader.commits(); len(got) != 1 || got[0] != 12 {
		t.Errorf("committed offsets = %v, want [12]", got)
	}
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	reader := newFakeReader()
	c := New(reader, &fakeJob{stopAt: 99, cancel: cancel}, testLogger())

	done := make(chan error, 1)
	go func() { done <- c.Consume(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Consume() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Consume did not return after cancellation")
	}
}

func TestCloseReleasesReader(t *testing.T) {
	reader := newFakeReader()
	c := New(reader, &fakeJob{stopAt: 1, cancel: func() {}}, testLogger())

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !reader.closed {
		t.Error("underlying reader was not closed")
	}
}
