package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glasses-cloud-be/internal/dto"
	"glasses-cloud-be/internal/pkg/logger"
	"glasses-cloud-be/internal/repository/memory"
)

func TestRegisterStoresHashedKeyOnly(t *testing.T) {
	apps := memory.NewAppRepository()
	registry := NewAppRegistryService(apps, nil, logger.NewNopLogger())

	res, err := registry.Register(context.Background(), dto.RegisterAppRequest{
		PackageName: "com.example.captions",
		PublicURL:   "http://localhost:9100",
		APIKey:      "super-secret-api-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "com.example.captions", res.PackageName)

	stored, err := apps.FindByPackage("com.example.captions")
	require.NoError(t, err)
	assert.NotEqual(t, "super-secret-api-key", stored.HashedAPIKey)
	assert.NotContains(t, stored.HashedAPIKey, "super-secret")
}

func TestReRegisterReplacesRecord(t *testing.T) {
	apps := memory.NewAppRepository()
	registry := NewAppRegistryService(apps, nil, logger.NewNopLogger())

	for _, url := range []string{"http://localhost:9100", "http://localhost:9200"} {
		_, err := registry.Register(context.Background(), dto.RegisterAppRequest{
			PackageName: "com.example.captions",
			PublicURL:   url,
			APIKey:      "super-secret-api-key",
		})
		require.NoError(t, err)
	}

	stored, err := registry.Lookup("com.example.captions")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9200", stored.PublicURL)

	all, err := registry.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestHeartbeatUnknownPackage(t *testing.T) {
	registry := NewAppRegistryService(memory.NewAppRepository(), nil, logger.NewNopLogger())

	err := registry.Heartbeat(context.Background(), dto.HeartbeatRequest{PackageName: "com.example.ghost"})
	assert.ErrorIs(t, err, ErrUnknownApp)
}

func TestHeartbeatWithoutPublisherSucceeds(t *testing.T) {
	apps := memory.NewAppRepository()
	registry := NewAppRegistryService(apps, nil, logger.NewNopLogger())
	registerTestApp(t, apps, "com.example.captions", "super-secret-api-key")

	assert.NoError(t, registry.Heartbeat(context.Background(), dto.HeartbeatRequest{
		PackageName: "com.example.captions",
	}))
}
