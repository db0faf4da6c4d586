// Package jobs wires background work onto an asynq queue backed by redis.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

const (
	TypeRosterRebuild = "roster:rebuild"

	QueueDefault = "default"
)

// ErrAlreadyQueued reports that an identical task is already waiting.
var ErrAlreadyQueued = errors.New("identical task already queued")

// RosterRebuildPayload is the task body for TypeRosterRebuild. AsOf is a
// YYYY-MM-DD date; empty means "today" in the worker's time zone.
type RosterRebuildPayload struct {
	AsOf        string `json:"as_of,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
}

func NewRosterRebuildTask(p RosterRebuildPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	// Identical payloads are queued at most once per uniqueness window.
	return asynq.NewTask(TypeRosterRebuild, b,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Unique(10*time.Minute),
		asynq.Queue(QueueDefault),
	), nil
}

func ParseRosterRebuildPayload(t *asynq.Task) (RosterRebuildPayload, error) {
	var p RosterRebuildPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %w", TypeRosterRebuild, err)
	}
	if p.AsOf != "" {
		if _, err := time.Parse("2006-01-02", p.AsOf); err != nil {
			return p, fmt.Errorf("invalid as_of %q: %w", p.AsOf, err)
		}
	}
	return p, nil
}

// Enqueuer submits tasks to the queue.
type Enqueuer struct {
	client *asynq.Client
	logger zerolog.Logger
}

func NewEnqueuer(redisURL string, logger zerolog.Logger) (*Enqueuer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return &Enqueuer{client: asynq.NewClient(opt), logger: logger}, nil
}

// EnqueueRosterRebuild returns the queued task id.
func (e *Enqueuer) EnqueueRosterRebuild(ctx context.Context, p RosterRebuildPayload) (string, error) {
	task, err := NewRosterRebuildTask(p)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", fmt.Errorf("%w: %s", ErrAlreadyQueued, TypeRosterRebuild)
	}
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeRosterRebuild, err)
	}
	e.logger.Info().Str("task_id", info.ID).Str("as_of", p.AsOf).Msg("roster rebuild enqueued")
	return info.ID, nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}
