package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-monitor/tracker/internal/config"
	"fleet-monitor/tracker/internal/fanout"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// PublishUpdate mirrors one processed sample to redis: the live snapshot
// hash with a TTL, the fleet geo index, and the per-vehicle / per-fleet
// pub/sub channels other instances and the serving layer listen on.
func (r *RedisStore) PublishUpdate(ctx context.Context, update *fanout.Update) error {
	snap := update.Snapshot

	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	stateData := map[string]interface{}{
		"vehicle_id":     snap.VehicleID,
		"fleet_id":       snap.FleetID,
		"lat":            snap.Latitude,
		"lng":            snap.Longitude,
		"speed_kmh":      snap.SpeedKmh,
		"heading":        snap.Heading,
		"trip_state":     string(snap.TripState),
		"last_sample_at": snap.LastSampleAt.Unix(),
	}
	if snap.ActiveTrip != nil {
		stateData["trip_id"] = snap.ActiveTrip.ID
	}

	vehicleStateKey := fmt.Sprintf("vehicle:%s:state", snap.VehicleID)
	vehicleChannel := fmt.Sprintf("vehicle:%s:updates", snap.VehicleID)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, vehicleStateKey, stateData)
	pipe.Expire(ctx, vehicleStateKey, 5*time.Minute)
	pipe.Publish(ctx, vehicleChannel, payload)

	if snap.FleetID != "" {
		geoKey := fmt.Sprintf("fleet:%s:geo", snap.FleetID)
		fleetChannel := fmt.Sprintf("fleet:%s:updates", snap.FleetID)
		pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      snap.VehicleID,
			Longitude: snap.Longitude,
			Latitude:  snap.Latitude,
		})
		pipe.Publish(ctx, fleetChannel, payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}

	return nil
}

// ClaimOfflineAlert guards the OFFLINE alert against duplicate emission
// when more than one tracker instance runs the liveness tick. The claim
// expires with the ttl; a new sample arriving releases it.
func (r *RedisStore) ClaimOfflineAlert(ctx context.Context, vehicleID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("alert:offline:%s", vehicleID)
	ok, err := r.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("offline claim failed: %w", err)
	}
	return ok, nil
}

// ReleaseOfflineAlert clears the claim after the vehicle comes back.
func (r *RedisStore) ReleaseOfflineAlert(ctx context.Context, vehicleID string) error {
	key := fmt.Sprintf("alert:offline:%s", vehicleID)
	return r.client.Del(ctx, key).Err()
}

// GetAPIKey resolves a device API key to its vehicle id, "" when unknown.
func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("vehicle:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}
