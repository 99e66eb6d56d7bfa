package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"glasses-cloud-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const (
	locationCacheTTL = 24 * time.Hour
	opTimeout        = 2 * time.Second
)

// RedisUserStorage persists per-user and per-app state in Redis. Keyspace:
// "loc:<userId>", "prefs:<userId>" (hash), "appkv:<pkg>:<key>".
type RedisUserStorage struct {
	rdb *redis.Client
}

func NewRedisUserStorage(rdb *redis.Client) contract.IUserStorage {
	return &RedisUserStorage{rdb: rdb}
}

func (s *RedisUserStorage) LoadLocationCache(ctx context.Context, userID string) (*contract.LocationFix, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := s.rdb.Get(ctx, "loc:"+userID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load location cache: %w", err)
	}

	var fix contract.LocationFix
	if err := json.Unmarshal([]byte(raw), &fix); err != nil {
		return nil, fmt.Errorf("decode location cache: %w", err)
	}
	return &fix, nil
}

func (s *RedisUserStorage) SaveLocationCache(ctx context.Context, userID string, fix contract.LocationFix) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := json.Marshal(fix)
	if err != nil {
		return fmt.Errorf("encode location cache: %w", err)
	}
	if err := s.rdb.Set(ctx, "loc:"+userID, raw, locationCacheTTL).Err(); err != nil {
		return fmt.Errorf("save location cache: %w", err)
	}
	return nil
}

func (s *RedisUserStorage) LoadPreferences(ctx context.Context, userID string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	prefs, err := s.rdb.HGetAll(ctx, "prefs:"+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return prefs, nil
}

func (s *RedisUserStorage) SavePreference(ctx context.Context, userID, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.rdb.HSet(ctx, "prefs:"+userID, key, value).Err(); err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	return nil
}

func (s *RedisUserStorage) GetAppStorage(ctx context.Context, packageName, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := s.rdb.Get(ctx, "appkv:"+packageName+":"+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get app storage: %w", err)
	}
	return val, nil
}

func (s *RedisUserStorage) SetAppStorage(ctx context.Context, packageName, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.rdb.Set(ctx, "appkv:"+packageName+":"+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set app storage: %w", err)
	}
	return nil
}
