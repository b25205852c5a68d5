package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/vortexis/hackhub/backend/internal/config"
	"github.com/vortexis/hackhub/backend/internal/handlers"
	"github.com/vortexis/hackhub/backend/internal/middleware"
	"github.com/vortexis/hackhub/backend/internal/models"
	"github.com/vortexis/hackhub/backend/internal/realtime"
	"github.com/vortexis/hackhub/backend/internal/services"
	"github.com/vortexis/hackhub/backend/internal/utils"
	"github.com/vortexis/hackhub/backend/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg *config.Config

	redisClient  *redis.Client
	redisBroker  *services.RedisBroker
	broker       services.Broadcaster
	queue        services.MembershipQueue
	worker       *services.Worker
	scrubber     *services.RetentionScrubber
	upgradeLimit *middleware.RateLimiter

	healthHandler       *handlers.HealthHandler
	socketHandler       *handlers.ChatSocketHandler
	conversationHandler *handlers.ConversationHandler
	adminHandler        *handlers.AdminConversationHandler
}

// bootstrap initializes all application dependencies: database, broker, queue, schedulers.
// Background loops stop when ctx is cancelled.
func bootstrap(ctx context.Context, cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()

	svc := &appServices{cfg: cfg}

	// Broker: Redis pub/sub fans out across instances, otherwise in-process only
	svc.broker = services.NewLocalBroker()
	if cfg.Redis.Enabled {
		client, err := services.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, broadcasting in-process only")
		} else {
			rb := services.NewRedisBroker(client)
			if err := rb.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("Redis subscribe failed, broadcasting in-process only")
				_ = client.Close()
			} else {
				svc.redisClient, svc.redisBroker, svc.broker = client, rb, rb
			}
		}
	}
	logger.Info().Str("mode", svc.broker.Mode()).Msg("Broker ready")

	members := services.NewMembershipStore(db)
	membershipSync := services.NewMembershipSync(db)
	messages := services.NewMessageStore(db, svc.broker)
	conversations := services.NewConversationService(db, members, messages)
	users := services.NewUserService(db)

	// Roster sync queue (uses Redis if enabled, otherwise applied inline)
	svc.queue = services.InitMembershipQueue(cfg, membershipSync.Apply)
	if svc.queue.IsAsync() {
		svc.worker = services.NewWorker(&cfg.Redis, membershipSync.Apply)
		if svc.worker != nil {
			if err := svc.worker.Start(); err != nil {
				logger.Fatalf("Failed to start membership worker: %v", err)
			}
		}
	}

	svc.scrubber = services.NewRetentionScrubber(db, cfg.Chat.DeletedRetentionDays, cfg.Chat.ScrubSchedule)
	if err := svc.scrubber.Start(); err != nil {
		logger.Fatalf("Failed to start retention scrubber: %v", err)
	}

	svc.upgradeLimit = middleware.NewRateLimiter(cfg.Chat.UpgradesPerSecond, cfg.Chat.UpgradeBurst)
	go svc.upgradeLimit.Run(ctx)

	dispatcher := handlers.NewCommandDispatcher(messages, cfg.Chat.CommandsPerSecond, cfg.Chat.CommandBurst)
	svc.socketHandler = handlers.NewChatSocketHandler(
		members, users, svc.broker, dispatcher,
		realtime.OptionsFromConfig(cfg.Chat), cfg.Server.AllowOrigins,
	)
	svc.conversationHandler = handlers.NewConversationHandler(conversations, messages, users)
	svc.adminHandler = handlers.NewAdminConversationHandler(conversations, svc.queue)
	svc.healthHandler = handlers.NewHealthHandler(db, svc.broker, svc.queue)

	return svc
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scrubber.Stop()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.queue != nil {
		s.queue.Close()
	}
	if s.redisBroker != nil {
		if err := s.redisBroker.Close(); err != nil {
			logger.Warn().Err(err).Msg("Broker close failed")
		}
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
}
