package bootstrap

import (
	"context"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"

	"glasses-cloud-be/internal/config"
	"glasses-cloud-be/internal/controller"
	"glasses-cloud-be/internal/pkg/logger"
	"glasses-cloud-be/internal/repository/contract"
	"glasses-cloud-be/internal/repository/implementation"
	"glasses-cloud-be/internal/repository/memory"
	"glasses-cloud-be/internal/service"
	"glasses-cloud-be/internal/session"
	"glasses-cloud-be/internal/transcription"
	"glasses-cloud-be/internal/websocket"
	"glasses-cloud-be/pkg/events"
	pktNats "glasses-cloud-be/pkg/nats"
)

type Container struct {
	// Controllers
	HealthController  controller.IHealthController
	AppController     controller.IAppController
	StorageController controller.IStorageController

	// Websocket termination
	WsHandler *websocket.Handler

	// Exposed for main.go to run / stop
	SessionService  service.ISessionService
	ConsumerService service.IConsumerService
	Registry        *session.Registry
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	sessionLogger := logger.NewIsolatedLogger(cfg.App.SessionLogFilePath)

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis, with in-memory fallback when unreachable
	var userStorage contract.IUserStorage
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Using in-memory user storage", err)
		userStorage = memory.NewUserStorage()
	} else {
		userStorage = implementation.NewRedisUserStorage(rdb)
	}

	// 3. Repositories & services
	appRepo := memory.NewAppRepository()
	authService := service.NewAuthService(appRepo, cfg.Keys.JwtSecret)
	registryService := service.NewAppRegistryService(appRepo, natsPub, sysLogger)

	registry := session.NewRegistry(cfg.Session.ReconnectGrace, sessionLogger)

	sessionService := service.NewSessionService(
		cfg,
		registry,
		authService,
		registryService,
		userStorage,
		transcription.NullProviderFactory,
		pubSub,
		sessionLogger,
	)

	consumerService := service.NewConsumerService(pubSub, service.SessionEventsTopic, sessionLogger)
	storageService := service.NewStorageService(userStorage)

	// 4. Cross-instance recovery fan-out
	if natsSub != nil {
		err := natsSub.Subscribe("events."+events.AppReregistered, "cloud-"+cfg.App.Port,
			func(ctx context.Context, ev events.Event) error {
				pkg, _ := ev.Payload()["package"].(string)
				if pkg == "" {
					return nil
				}
				return sessionService.HandleAppReregistered(ctx, pkg)
			})
		if err != nil {
			log.Printf("[WARN] Failed to subscribe to recovery events: %v", err)
		}
	}

	wsHandler := websocket.NewHandler(sessionService, cfg, sysLogger)

	return &Container{
		HealthController:  controller.NewHealthController(sessionService),
		AppController:     controller.NewAppController(registryService, sessionService),
		StorageController: controller.NewStorageController(storageService),
		WsHandler:         wsHandler,
		SessionService:    sessionService,
		ConsumerService:   consumerService,
		Registry:          registry,
	}
}
