package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskSessionPurge deletes expired login-session rows.
	TaskSessionPurge = "sessions:purge"
)

// SessionPurgePayload carries scheduling metadata.
type SessionPurgePayload struct {
	Reason string `json:"reason"`
}

// SessionPurger removes login sessions past their expiry.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// SessionPurgeJob runs the purge on the worker.
type SessionPurgeJob struct {
	Purger  SessionPurger
	Logger  *slog.Logger
	Metrics Observer
	clock   func() time.Time
}

// NewSessionPurgeJob constructs the job handler. metrics may be nil.
func NewSessionPurgeJob(purger SessionPurger, logger *slog.Logger, metrics Observer) *SessionPurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionPurgeJob{
		Purger:  purger,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewSessionPurgeTask creates the Asynq task for the purge.
func NewSessionPurgeTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = "cron"
	}
	body, err := json.Marshal(SessionPurgePayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPurge, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// Handle executes the purge.
func (j *SessionPurgeJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Purger == nil {
		return errors.New("jobs: session purge not configured")
	}
	var payload SessionPurgePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	start := j.clock()
	removed, err := j.Purger.PurgeExpiredSessions(ctx)
	if j.Metrics != nil {
		j.Metrics.ObserveJob(TaskSessionPurge, err)
	}
	if err != nil {
		j.Logger.Error("session purge failed", slog.String("reason", payload.Reason), slog.Any("error", err))
		return err
	}
	j.Logger.Info("session purge finished",
		slog.String("reason", payload.Reason),
		slog.Int64("removed", removed),
		slog.Duration("took", j.clock().Sub(start)),
	)
	return nil
}
