package service

import (
	"context"

	"glasses-cloud-be/internal/repository/contract"
)

type IStorageService interface {
	GetAppValue(ctx context.Context, packageName, key string) (string, error)
	SetAppValue(ctx context.Context, packageName, key, value string) error
	GetPreferences(ctx context.Context, userID string) (map[string]string, error)
	SetPreference(ctx context.Context, userID, key, value string) error
}

type storageService struct {
	storage contract.IUserStorage
}

func NewStorageService(storage contract.IUserStorage) IStorageService {
	return &storageService{storage: storage}
}

func (s *storageService) GetAppValue(ctx context.Context, packageName, key string) (string, error) {
	return s.storage.GetAppStorage(ctx, packageName, key)
}

func (s *storageService) SetAppValue(ctx context.Context, packageName, key, value string) error {
	return s.storage.SetAppStorage(ctx, packageName, key, value)
}

func (s *storageService) GetPreferences(ctx context.Context, userID string) (map[string]string, error) {
	return s.storage.LoadPreferences(ctx, userID)
}

func (s *storageService) SetPreference(ctx context.Context, userID, key, value string) error {
	return s.storage.SavePreference(ctx, userID, key, value)
}
