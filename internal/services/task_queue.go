package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/vortexis/hackhub/backend/internal/config"
	"github.com/vortexis/hackhub/backend/pkg/logger"
)

const (
	TaskTypeMembershipSync = "membership:sync"
)

// MembershipTask is a roster change delivered by an owning domain.
type MembershipTask struct {
	ConversationID uint   `json:"conversation_id"`
	Op             string `json:"op"` // added, removed, cleared
	UserIDs        []uint `json:"user_ids,omitempty"`
	AdminIDs       []uint `json:"admin_ids,omitempty"`
}

// MembershipQueue defines the interface for membership sync delivery
type MembershipQueue interface {
	// Enqueue hands a task to the queue
	Enqueue(ctx context.Context, task *MembershipTask) error
	// IsAsync returns true if tasks are applied by a background worker
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// Global queue instance
var (
	globalQueue MembershipQueue
	queueOnce   sync.Once
)

// InitMembershipQueue initializes the global queue based on config. apply runs tasks
// inline when Redis is disabled or unreachable.
func InitMembershipQueue(cfg *config.Config, apply func(context.Context, *MembershipTask) error) MembershipQueue {
	queueOnce.Do(func() {
		globalQueue = NewMembershipQueue(cfg, apply)
	})
	return globalQueue
}

// NewMembershipQueue picks asynq when Redis is enabled and reachable.
func NewMembershipQueue(cfg *config.Config, apply func(context.Context, *MembershipTask) error) MembershipQueue {
	if !cfg.Redis.Enabled {
		logger.Infof("[MembershipQueue] Sync queue initialized (Redis disabled)")
		return NewSyncQueue(apply)
	}
	queue, err := NewAsyncQueue(&cfg.Redis)
	if err != nil {
		logger.Warnf("[MembershipQueue] Redis unavailable, falling back to sync mode: %v", err)
		return NewSyncQueue(apply)
	}
	logger.Infof("[MembershipQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
	return queue
}

// GetMembershipQueue returns the global queue instance
func GetMembershipQueue() MembershipQueue {
	return globalQueue
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements MembershipQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := redisClientOpt(cfg)
	client := asynq.NewClient(redisOpt)

	// verify the connection before committing to async mode
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(ctx context.Context, task *MembershipTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeMembershipSync, payload)
	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Info().
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Uint("conversation_id", task.ConversationID).
		Str("op", task.Op).
		Msg("membership task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue applies tasks in the caller's goroutine. Running inline keeps an add
// followed by a remove for the same user in order.
type SyncQueue struct {
	apply func(context.Context, *MembershipTask) error
}

func NewSyncQueue(apply func(context.Context, *MembershipTask) error) *SyncQueue {
	return &SyncQueue{apply: apply}
}

func (q *SyncQueue) Enqueue(ctx context.Context, task *MembershipTask) error {
	if q.apply == nil {
		logger.Warnf("[SyncQueue] no processor set, membership task dropped")
		return nil
	}
	return q.apply(ctx, task)
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}
