package container

import (
	"context"
	"fmt"
	"os"

	"github.com/aperturelab/proofing/cmd/proofing/notify"
	"github.com/aperturelab/proofing/cmd/proofing/repository"
	"github.com/aperturelab/proofing/cmd/proofing/service"
	"github.com/aperturelab/proofing/cmd/proofing/sweeper"
	"github.com/aperturelab/proofing/common/bootstrap"
	"github.com/aperturelab/proofing/common/clients"
	"github.com/aperturelab/proofing/common/ratelimit"
	rediscommon "github.com/aperturelab/proofing/common/redis"
	"github.com/redis/go-redis/v9"
)

// Container holds all initialized services and repositories
type Container struct {
	Components  *bootstrap.Components
	Redis       *rediscommon.Client
	RedisRaw    *redis.Client
	RateLimiter *ratelimit.RateLimiter
	Companion   *clients.CompanionClient

	// Repositories
	CollectionRepo *repository.CollectionRepository
	ClientRepo     *repository.ClientRepository
	SelectionRepo  *repository.SelectionRepository
	HistoryRepo    *repository.HistoryRepository

	// Services
	Hooks     *service.Hooks
	History   *service.HistoryService
	Registry  *service.RegistryService
	Lifecycle *service.LifecycleService
	Selection *service.SelectionService
	Summary   *service.SummaryService
	Notices   *service.AdminNotices

	// Background work
	Dispatcher      *notify.Dispatcher
	ExpireSweeper   *sweeper.ExpireSweeper
	ReminderSweeper *sweeper.ReminderSweeper
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	redisRaw, err := createRedisClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	redisClient := rediscommon.NewClient(redisRaw, components.Logger)
	rateLimiter := ratelimit.NewRateLimiter(redisRaw, components.Logger)

	proofingCfg := components.Config.Proofing
	companion := clients.NewCompanionClient(proofingCfg.CompanionURL, proofingCfg.CompanionTimeout, components.Logger)

	collectionRepo := repository.NewCollectionRepository(components.DB)
	clientRepo := repository.NewClientRepository(components.DB)
	selectionRepo := repository.NewSelectionRepository(components.DB)
	historyRepo := repository.NewHistoryRepository(components.DB)

	hooks := service.NewHooks()
	registerCompanionHooks(hooks, companion)
	notices := service.NewAdminNotices(components.Cache, components.Logger)
	historyService := service.NewHistoryService(historyRepo, collectionRepo, components.Logger)
	registryService := service.NewRegistryService(collectionRepo, clientRepo, selectionRepo, historyService, components.Logger)
	lifecycleService := service.NewLifecycleService(
		collectionRepo,
		clientRepo,
		historyService,
		hooks,
		notices,
		proofingCfg,
		components.Logger,
	)
	selectionService := service.NewSelectionService(
		collectionRepo,
		registryService,
		selectionRepo,
		historyService,
		lifecycleService,
		hooks,
		components.Queue,
		components.Logger,
	)
	summaryService := service.NewSummaryService(collectionRepo, clientRepo, selectionRepo, historyService)

	dispatcher := notify.NewDispatcher(components.Queue, notify.NewLogNotifier(components.Logger), components.Logger)

	expireSweeper := sweeper.NewExpireSweeper(
		lifecycleService,
		components.Logger,
		sweeper.WithSweepInterval(proofingCfg.SweepInterval),
	)

	marks := sweeper.NewRedisMarks(redisClient, 2*proofingCfg.ReminderThreshold+proofingCfg.ReminderInterval)
	reminderSweeper := sweeper.NewReminderSweeper(
		collectionRepo,
		clientRepo,
		selectionRepo,
		marks,
		components.Queue,
		components.Logger,
		sweeper.WithReminderInterval(proofingCfg.ReminderInterval),
		sweeper.WithReminderThreshold(proofingCfg.ReminderThreshold),
	)

	return &Container{
		Components:      components,
		Redis:           redisClient,
		RedisRaw:        redisRaw,
		RateLimiter:     rateLimiter,
		Companion:       companion,
		CollectionRepo:  collectionRepo,
		ClientRepo:      clientRepo,
		SelectionRepo:   selectionRepo,
		HistoryRepo:     historyRepo,
		Hooks:           hooks,
		History:         historyService,
		Registry:        registryService,
		Lifecycle:       lifecycleService,
		Selection:       selectionService,
		Summary:         summaryService,
		Notices:         notices,
		Dispatcher:      dispatcher,
		ExpireSweeper:   expireSweeper,
		ReminderSweeper: reminderSweeper,
	}, nil
}

// registerCompanionHooks reports collection milestones to the companion
// service as usage telemetry. ReportEvent is fire-and-forget, so a slow
// or absent companion never holds up the transition.
func registerCompanionHooks(hooks *service.Hooks, companion *clients.CompanionClient) {
	if !companion.Enabled() {
		return
	}
	for _, event := range []service.LifecycleEvent{
		service.HookPublished,
		service.HookApproved,
		service.HookExpired,
		service.HookClosed,
		service.HookDelivered,
	} {
		hooks.Register(event, func(ctx context.Context, n service.HookNotice) {
			companion.ReportEvent(ctx, string(n.Event), map[string]any{
				"collection_id": n.Collection.ID.String(),
			})
		})
	}
}

// createRedisClient creates a Redis client from environment variables
func createRedisClient() (*redis.Client, error) {
	redisHost := getEnv("REDIS_HOST", "localhost")
	redisPort := getEnv("REDIS_PORT", "6379")
	redisPassword := getEnv("REDIS_PASSWORD", "")

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", redisHost, redisPort),
		Password: redisPassword,
		DB:       0,
	})

	return client, nil
}

// getEnv gets an environment variable or returns a default
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
