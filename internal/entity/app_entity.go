package entity

import "time"

// App is one registered third-party application server.
type App struct {
	PackageName  string
	HashedAPIKey string
	PublicURL    string
	IsSystemApp  bool
	RegisteredAt time.Time
}
