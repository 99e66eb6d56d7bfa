package service

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"glasses-cloud-be/internal/dto"
	"glasses-cloud-be/internal/entity"
	"glasses-cloud-be/internal/pkg/logger"
	"glasses-cloud-be/internal/repository/contract"
	"glasses-cloud-be/pkg/events"
	natsbus "glasses-cloud-be/pkg/nats"
)

type IAppRegistryService interface {
	// Register stores an app server. Only the bcrypt hash of the supplied
	// API key is retained.
	Register(ctx context.Context, req dto.RegisterAppRequest) (*dto.AppResponse, error)
	// Heartbeat marks an app server alive after a restart. Known packages
	// trigger a re-registration fan-out so every cloud instance can
	// reconnect affected sessions.
	Heartbeat(ctx context.Context, req dto.HeartbeatRequest) error
	Lookup(packageName string) (*entity.App, error)
	List() ([]*dto.AppResponse, error)
}

type appRegistryService struct {
	apps      contract.IAppRepository
	publisher *natsbus.Publisher
	log       logger.ILogger
}

// NewAppRegistryService wires the registry. publisher may be nil when NATS
// is not configured; fan-out is then skipped.
func NewAppRegistryService(apps contract.IAppRepository, publisher *natsbus.Publisher, log logger.ILogger) IAppRegistryService {
	return &appRegistryService{apps: apps, publisher: publisher, log: log}
}

func (s *appRegistryService) Register(ctx context.Context, req dto.RegisterAppRequest) (*dto.AppResponse, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.APIKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	app := &entity.App{
		PackageName:  req.PackageName,
		HashedAPIKey: string(hashed),
		PublicURL:    req.PublicURL,
		IsSystemApp:  req.IsSystemApp,
		RegisteredAt: time.Now(),
	}
	if err := s.apps.Save(app); err != nil {
		return nil, err
	}

	s.log.Info("AppRegistry", "App registered", map[string]interface{}{
		"package": app.PackageName, "public_url": app.PublicURL,
	})

	return toAppResponse(app), nil
}

func (s *appRegistryService) Heartbeat(ctx context.Context, req dto.HeartbeatRequest) error {
	app, err := s.apps.FindByPackage(req.PackageName)
	if err != nil {
		return ErrUnknownApp
	}

	if s.publisher != nil {
		ev := events.BaseEvent{
			Type: events.AppReregistered,
			Data: map[string]interface{}{
				"package":    app.PackageName,
				"public_url": app.PublicURL,
			},
			OccurredAt: time.Now(),
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.log.Warn("AppRegistry", "Re-registration fan-out failed", map[string]interface{}{
				"package": app.PackageName, "error": err.Error(),
			})
		}
	}
	return nil
}

func (s *appRegistryService) Lookup(packageName string) (*entity.App, error) {
	return s.apps.FindByPackage(packageName)
}

func (s *appRegistryService) List() ([]*dto.AppResponse, error) {
	apps, err := s.apps.All()
	if err != nil {
		return nil, err
	}
	out := make([]*dto.AppResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toAppResponse(app))
	}
	return out, nil
}

func toAppResponse(app *entity.App) *dto.AppResponse {
	return &dto.AppResponse{
		PackageName:  app.PackageName,
		PublicURL:    app.PublicURL,
		IsSystemApp:  app.IsSystemApp,
		RegisteredAt: app.RegisteredAt.Format(time.RFC3339),
	}
}
