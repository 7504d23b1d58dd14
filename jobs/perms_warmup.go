package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/commng/commng/internal/jobs"
)

// CacheWarmer is the slice of the policy engine warmup needs. Satisfied by
// policy.Engine.
type CacheWarmer interface {
	WarmCache(ctx context.Context, roleKeys []string) (int, error)
}

// PermissionsWarmupJob pre-populates role holder sets so the hot
// authorization path starts from a warm cache.
type PermissionsWarmupJob struct {
	Warmer  CacheWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPermissionsWarmupJob wires dependencies for the warmup handler.
func NewPermissionsWarmupJob(warmer CacheWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *PermissionsWarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsWarmupJob{Warmer: warmer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskPermissionsWarmup tasks.
func (j *PermissionsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Warmer == nil {
		return errors.New("permissions warmup: handler not configured")
	}
	var payload PermissionsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskPermissionsWarmup)
	count, err := j.Warmer.WarmCache(ctx, payload.RoleKeys)
	if err != nil {
		j.Logger.Error("permissions warmup", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddWarmedKeys(count)
	j.Logger.Info("permissions warmup complete", slog.Int("warmed_keys", count))
	return tracker.End(nil)
}
