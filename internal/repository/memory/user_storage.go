package memory

import (
	"context"
	"time"

	"glasses-cloud-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// UserStorage is an in-process IUserStorage used in tests and when Redis is
// unavailable. Location fixes age out; preferences and app storage do not.
type UserStorage struct {
	fixes *cache.Cache
	kv    *cache.Cache
}

func NewUserStorage() *UserStorage {
	return &UserStorage{
		fixes: cache.New(24*time.Hour, 10*time.Minute),
		kv:    cache.New(cache.NoExpiration, 0),
	}
}

func (s *UserStorage) LoadLocationCache(_ context.Context, userID string) (*contract.LocationFix, error) {
	if x, found := s.fixes.Get(userID); found {
		fix := x.(contract.LocationFix)
		return &fix, nil
	}
	return nil, nil
}

func (s *UserStorage) SaveLocationCache(_ context.Context, userID string, fix contract.LocationFix) error {
	s.fixes.Set(userID, fix, cache.DefaultExpiration)
	return nil
}

func (s *UserStorage) LoadPreferences(_ context.Context, userID string) (map[string]string, error) {
	prefs := make(map[string]string)
	prefix := "prefs:" + userID + ":"
	for key, item := range s.kv.Items() {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			prefs[key[len(prefix):]] = item.Object.(string)
		}
	}
	return prefs, nil
}

func (s *UserStorage) SavePreference(_ context.Context, userID, key, value string) error {
	s.kv.Set("prefs:"+userID+":"+key, value, cache.NoExpiration)
	return nil
}

func (s *UserStorage) GetAppStorage(_ context.Context, packageName, key string) (string, error) {
	if x, found := s.kv.Get("appkv:" + packageName + ":" + key); found {
		return x.(string), nil
	}
	return "", nil
}

func (s *UserStorage) SetAppStorage(_ context.Context, packageName, key, value string) error {
	s.kv.Set("appkv:"+packageName+":"+key, value, cache.NoExpiration)
	return nil
}
