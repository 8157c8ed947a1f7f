package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger/internal/app"
	"github.com/odyssey-erp/ledger/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	if redisAddr == "" {
		return nil, errors.New("jobs cli: redis address required")
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
	return &JobsCLI{client: client, inspector: inspector}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, payload jobs.GLIntegrityPayload) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskGLIntegrity, "integrity":
		task, err = jobs.NewGLIntegrityTask(payload)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = int(info.Pending)
		stats.Active = int(info.Active)
		stats.Scheduled = int(info.Scheduled)
		stats.Retry = int(info.Retry)
	}
	return stats, nil
}

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Operate background jobs",
	}
	cmd.AddCommand(newJobsTriggerCommand(), newJobsStatsCommand(), newJobsIntegrityCommand())
	return cmd
}

func newJobsTriggerCommand() *cobra.Command {
	var payload jobs.GLIntegrityPayload
	cmd := &cobra.Command{
		Use:   "trigger <job>",
		Short: "Enqueue a job on the worker queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			c, err := NewJobsCLI(cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			info, err := c.Trigger(cmd.Context(), args[0], payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	cmd.Flags().StringVar(&payload.TenantID, "tenant", "", "tenant id (default all tenants)")
	cmd.Flags().StringVar(&payload.AsOf, "as-of", "", "as-of date YYYY-MM-DD (default today)")
	return cmd
}

func newJobsStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show default queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			c, err := NewJobsCLI(cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			stats, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newJobsIntegrityCommand() *cobra.Command {
	var payload jobs.GLIntegrityPayload
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Run the ledger integrity check in this process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), app.BootstrapOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()
			var locker jobs.Locker
			if rt.Locker != nil {
				locker = rt.Locker
			}
			job := jobs.NewGLIntegrityJob(rt.Ledger, locker, rt.Logger, nil)
			out, err := job.Run(cmd.Context(), payload)
			if werr := writeJSON(cmd.OutOrStdout(), out); werr != nil {
				return werr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&payload.TenantID, "tenant", "", "tenant id (default all tenants)")
	cmd.Flags().StringVar(&payload.AsOf, "as-of", "", "as-of date YYYY-MM-DD (default today)")
	return cmd
}
