package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// RosterRebuildFunc performs one rebuild for the given payload.
type RosterRebuildFunc func(ctx context.Context, p RosterRebuildPayload) error

// NewMux routes task types to their handlers.
func NewMux(rebuild RosterRebuildFunc, logger zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRosterRebuild, rosterRebuildHandler(rebuild, logger))
	return mux
}

func rosterRebuildHandler(rebuild RosterRebuildFunc, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		p, err := ParseRosterRebuildPayload(t)
		if err != nil {
			// A malformed payload will never succeed.
			logger.Error().Err(err).Msg("dropping roster rebuild task")
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		if err := rebuild(ctx, p); err != nil {
			logger.Error().Err(err).Str("as_of", p.AsOf).Msg("roster rebuild failed")
			return err
		}
		return nil
	}
}

// NewServer builds the asynq worker server.
func NewServer(redisURL string, concurrency int, logger zerolog.Logger) (*asynq.Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 2
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueDefault: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn().Err(err).Str("type", task.Type()).Msg("task failed")
		}),
		Logger: asynqLogger{logger},
	}), nil
}

// asynqLogger adapts zerolog to asynq's logger interface.
type asynqLogger struct{ l zerolog.Logger }

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
