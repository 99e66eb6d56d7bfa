package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"glasses-cloud-be/pkg/streams"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Session  SessionConfig
	Location LocationConfig
	Keys     APIKeys
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	SessionLogFilePath string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type SessionConfig struct {
	// How long an App has to complete its registration handshake after the
	// socket opens before we close it.
	HandshakeTimeout time.Duration
	// How long a location poll may stay pending before the requester gets a
	// timeout error.
	PollTimeout time.Duration
	// How long an orphaned session (device gone, apps still attached) is
	// retained before full teardown.
	ReconnectGrace time.Duration
	// Package name allowed to switch dashboard modes.
	SystemDashboardPackage string
}

type LocationConfig struct {
	Tiers TierTable
}

type APIKeys struct {
	JwtSecret string
}

// Tier is one row of the location accuracy configuration table.
type Tier struct {
	Name   string
	Rank   int
	MaxAge time.Duration
}

// TierTable is the ordered accuracy hierarchy, lowest fidelity first.
type TierTable struct {
	byName  map[string]Tier
	ordered []Tier
}

// defaultTierAges holds seconds of acceptable cache age per tier name.
var defaultTierAges = map[string]int{
	"reduced":         900,
	"threeKilometers": 900,
	"kilometer":       300,
	"hundredMeters":   60,
	"tenMeters":       30,
	"standard":        30,
	"high":            10,
	"realtime":        1,
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	tiers, err := parseTierTable(getEnv("LOCATION_TIER_AGES", ""))
	if err != nil {
		log.Printf("Warn: invalid LOCATION_TIER_AGES, using defaults: %v", err)
		tiers, _ = parseTierTable("")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8002"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:8002"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "cloud.log"),
			SessionLogFilePath: getEnv("SESSION_LOG_FILE_PATH", "sessions.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Session: SessionConfig{
			HandshakeTimeout:       time.Duration(getEnvAsInt("APP_HANDSHAKE_TIMEOUT_SECONDS", 5)) * time.Second,
			PollTimeout:            time.Duration(getEnvAsInt("LOCATION_POLL_TIMEOUT_SECONDS", 15)) * time.Second,
			ReconnectGrace:         time.Duration(getEnvAsInt("SESSION_RECONNECT_GRACE_SECONDS", 60)) * time.Second,
			SystemDashboardPackage: getEnv("SYSTEM_DASHBOARD_PACKAGE", "system.glasses.dashboard"),
		},
		Location: LocationConfig{Tiers: tiers},
		Keys: APIKeys{
			JwtSecret: getEnv("JWT_SECRET", "dev-secret"),
		},
	}
}

// parseTierTable builds the tier table from an override string of the form
// "name:seconds,name:seconds". Names outside the stream vocabulary are
// rejected; missing names fall back to defaults. Tier ranks follow the
// vocabulary order, not the override order.
func parseTierTable(override string) (TierTable, error) {
	ages := make(map[string]int, len(defaultTierAges))
	for k, v := range defaultTierAges {
		ages[k] = v
	}

	if override != "" {
		for _, pair := range strings.Split(override, ",") {
			name, secs, ok := strings.Cut(strings.TrimSpace(pair), ":")
			if !ok {
				return TierTable{}, fmt.Errorf("malformed tier entry %q", pair)
			}
			if !streams.IsValidTier(name) {
				return TierTable{}, fmt.Errorf("unknown tier %q", name)
			}
			n, err := strconv.Atoi(secs)
			if err != nil || n <= 0 {
				return TierTable{}, fmt.Errorf("bad age for tier %q: %q", name, secs)
			}
			ages[name] = n
		}
	}

	t := TierTable{byName: make(map[string]Tier, len(streams.TierNames))}
	for rank, name := range streams.TierNames {
		tier := Tier{Name: name, Rank: rank, MaxAge: time.Duration(ages[name]) * time.Second}
		t.byName[name] = tier
		t.ordered = append(t.ordered, tier)
	}
	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].Rank < t.ordered[j].Rank })
	return t, nil
}

// DefaultTierTable returns the built-in tier configuration. Used by tests
// and by callers that have no Config at hand.
func DefaultTierTable() TierTable {
	t, _ := parseTierTable("")
	return t
}

// Lookup returns the tier row for name.
func (t TierTable) Lookup(name string) (Tier, bool) {
	tier, ok := t.byName[name]
	return tier, ok
}

// Lowest is the default tier when nobody subscribed.
func (t TierTable) Lowest() Tier {
	return t.ordered[0]
}

// Highest returns the maximum-rank tier among names; ok is false when no
// name is a known tier.
func (t TierTable) Highest(names []string) (Tier, bool) {
	var best Tier
	found := false
	for _, n := range names {
		tier, ok := t.byName[n]
		if !ok {
			continue
		}
		if !found || tier.Rank > best.Rank {
			best = tier
			found = true
		}
	}
	return best, found
}

// AtLeast reports whether tier name ranks at or above the reference tier.
func (t TierTable) AtLeast(name, reference string) bool {
	a, okA := t.byName[name]
	b, okB := t.byName[reference]
	return okA && okB && a.Rank >= b.Rank
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
