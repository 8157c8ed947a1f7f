package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGLIntegrity verifies every tenant ledger against its posted history.
	TaskGLIntegrity = "ledger:gl_integrity"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// GLIntegrityPayload scopes an integrity run. An empty tenant means every tenant
// and an empty date means today in UTC.
type GLIntegrityPayload struct {
	TenantID string `json:"tenant_id,omitempty"`
	AsOf     string `json:"as_of,omitempty"`
}

// Tenant parses the optional tenant scope.
func (p GLIntegrityPayload) Tenant() (uuid.UUID, bool, error) {
	if p.TenantID == "" || p.TenantID == "all" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(p.TenantID)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// Date parses the optional as-of date, falling back to now.
func (p GLIntegrityPayload) Date(now time.Time) (time.Time, error) {
	if p.AsOf == "" {
		return now.UTC(), nil
	}
	return time.Parse(time.DateOnly, p.AsOf)
}

// NewGLIntegrityTask constructs an Asynq task for the integrity job.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// EnqueueGLIntegrity enqueues an integrity run.
func (c *Client) EnqueueGLIntegrity(ctx context.Context, payload GLIntegrityPayload) (*asynq.TaskInfo, error) {
	task, err := NewGLIntegrityTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}
