package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
)

type stubWarmer struct {
	count    int
	err      error
	received []string
}

func (s *stubWarmer) WarmCache(ctx context.Context, roleKeys []string) (int, error) {
	s.received = roleKeys
	return s.count, s.err
}

func warmupTask(t *testing.T, roleKeys []string) *asynq.Task {
	t.Helper()
	task, err := NewPermissionsWarmupTask(roleKeys)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func TestWarmupHandlePassesRoleKeys(t *testing.T) {
	warmer := &stubWarmer{count: 2}
	job := NewPermissionsWarmupJob(warmer, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	task := warmupTask(t, []string{"channel:1:read", "reporting:read"})
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(warmer.received) != 2 {
		t.Fatalf("expected role keys forwarded, got %v", warmer.received)
	}
}

func TestWarmupHandleEmptyPayloadWarmsAll(t *testing.T) {
	warmer := &stubWarmer{count: 5}
	job := NewPermissionsWarmupJob(warmer, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	if err := job.Handle(context.Background(), warmupTask(t, nil)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if warmer.received != nil {
		t.Fatalf("expected nil role keys to mean warm-all, got %v", warmer.received)
	}
}

func TestWarmupHandlePropagatesError(t *testing.T) {
	warmer := &stubWarmer{err: errors.New("store down")}
	job := NewPermissionsWarmupJob(warmer, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	if err := job.Handle(context.Background(), warmupTask(t, nil)); err == nil {
		t.Fatal("expected error to propagate for retry")
	}
}

func TestWarmupHandleMalformedPayloadSkipsRetry(t *testing.T) {
	job := NewPermissionsWarmupJob(&stubWarmer{}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	task := asynq.NewTask(TaskPermissionsWarmup, []byte("{not json"))
	if err := job.Handle(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}
