package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"fleet-monitor/tracker/internal/config"
)

func TestStaticOperatorKeys(t *testing.T) {
	a := NewAuthenticator(&config.Config{
		ValidAPIKeys:        []string{"ops_key_1", "ops_key_2", ""},
		AuthCacheTTLSeconds: 300,
	}, nil)

	ctx := context.Background()

	vehicleID, ok := a.Authenticate(ctx, "ops_key_1")
	assert.True(t, ok)
	assert.Empty(t, vehicleID, "operator keys are not bound to a vehicle")

	_, ok = a.Authenticate(ctx, "ops_key_2")
	assert.True(t, ok)

	// The empty string must never authenticate, even though it appears in
	// a sloppily configured key list.
	_, ok = a.Authenticate(ctx, "")
	assert.False(t, ok)
}

func TestUnknownKeyWithoutRedis(t *testing.T) {
	a := NewAuthenticator(&config.Config{AuthCacheTTLSeconds: 300}, nil)

	_, ok := a.Authenticate(context.Background(), "who_dis")
	assert.False(t, ok)
}
