package contract

import (
	"context"
	"time"
)

// LocationFix is the persisted last-known fix for a user.
type LocationFix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  string    `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// IUserStorage is the persistence access contract. All writes are
// best-effort from the arbiters' perspective: callers log and continue on
// error, they never block a user-visible path on storage.
type IUserStorage interface {
	LoadLocationCache(ctx context.Context, userID string) (*LocationFix, error)
	SaveLocationCache(ctx context.Context, userID string, fix LocationFix) error

	LoadPreferences(ctx context.Context, userID string) (map[string]string, error)
	SavePreference(ctx context.Context, userID, key, value string) error

	// App-scoped key-value storage exposed over HTTP.
	GetAppStorage(ctx context.Context, packageName, key string) (string, error)
	SetAppStorage(ctx context.Context, packageName, key, value string) error
}
