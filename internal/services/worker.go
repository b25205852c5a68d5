package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/vortexis/hackhub/backend/internal/config"
	"github.com/vortexis/hackhub/backend/pkg/logger"
)

// Worker applies membership tasks from the asynq queue
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	apply   func(context.Context, *MembershipTask) error
	running bool
	mu      sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig, apply func(context.Context, *MembershipTask) error) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisClientOpt(cfg),
		asynq.Config{
			// one at a time keeps roster changes for a conversation in enqueue order
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error().Err(err).Str("task_type", task.Type()).Msg("task failed")
			}),
		},
	)

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		apply:  apply,
	}
	w.mux.HandleFunc(TaskTypeMembershipSync, w.handleMembershipTask)
	return w
}

// Start begins processing tasks
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.running = true
	logger.Infof("[Worker] Membership worker started")
	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	logger.Infof("[Worker] Shutdown complete")
}

func (w *Worker) handleMembershipTask(ctx context.Context, t *asynq.Task) error {
	var task MembershipTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode membership task: %v: %w", err, asynq.SkipRetry)
	}

	if w.apply == nil {
		logger.Warnf("[Worker] no processor set")
		return nil
	}

	err := w.apply(ctx, &task)
	var chatErr *ChatError
	if errors.As(err, &chatErr) {
		// bad input will not get better on retry
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}
