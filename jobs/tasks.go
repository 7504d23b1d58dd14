package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPermissionsWarmup bulk-populates the permission cache.
	TaskPermissionsWarmup = "perms:cache_warmup"
)

// PermissionsWarmupPayload selects which role keys to warm. An empty list
// warms every provisioned role.
type PermissionsWarmupPayload struct {
	RoleKeys []string `json:"role_keys,omitempty"`
}

// NewPermissionsWarmupTask constructs an Asynq task for a cache warm.
func NewPermissionsWarmupTask(roleKeys []string) (*asynq.Task, error) {
	data, err := json.Marshal(PermissionsWarmupPayload{RoleKeys: roleKeys})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPermissionsWarmup, data), nil
}
