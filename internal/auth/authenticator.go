package auth

import (
	"context"
	"sync"
	"time"

	"fleet-monitor/tracker/internal/config"
	"fleet-monitor/tracker/internal/store"
)

type cacheEntry struct {
	vehicleID string
	expiresAt time.Time
}

// Authenticator validates device API keys in three layers: static
// operator keys from config (valid for any vehicle), a local cache, and
// a redis lookup that also yields the vehicle the key is bound to.
type Authenticator struct {
	localCache sync.Map
	redis      *store.RedisStore
	ttl        time.Duration
	staticKeys map[string]bool
}

func NewAuthenticator(cfg *config.Config, redis *store.RedisStore) *Authenticator {
	staticKeys := make(map[string]bool, len(cfg.ValidAPIKeys))
	for _, k := range cfg.ValidAPIKeys {
		if k != "" {
			staticKeys[k] = true
		}
	}

	return &Authenticator{
		redis:      redis,
		ttl:        time.Duration(cfg.AuthCacheTTLSeconds) * time.Second,
		staticKeys: staticKeys,
	}
}

// Authenticate resolves an API key. The second return reports validity;
// vehicleID is the vehicle the key is bound to, empty for operator keys
// that may submit for any vehicle.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, bool) {
	// Level 0: static operator keys
	if a.staticKeys[apiKey] {
		return "", true
	}

	// Level 1: in-memory cache
	if raw, ok := a.localCache.Load(apiKey); ok {
		entry := raw.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.vehicleID, true
		}
		a.localCache.Delete(apiKey)
	}

	// Level 2: redis lookup
	if a.redis == nil {
		return "", false
	}
	vehicleID, err := a.redis.GetAPIKey(ctx, apiKey)
	if err != nil || vehicleID == "" {
		return "", false
	}

	a.localCache.Store(apiKey, cacheEntry{
		vehicleID: vehicleID,
		expiresAt: time.Now().Add(a.ttl),
	})

	return vehicleID, true
}
