package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file — using system environment variables")
	}

	ctx := context.Background()

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		seedGetEnv("DB_USER", "fleet_user"),
		seedGetEnv("DB_PASSWORD", "fleet_password"),
		seedGetEnv("DB_HOST", "localhost"),
		seedGetEnv("DB_PORT", "5432"),
		seedGetEnv("DB_NAME", "fleet_monitor"),
	)

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	client := redis.NewClient(&redis.Options{
		Addr:     seedGetEnv("REDIS_ADDR", "localhost:6379"),
		Password: seedGetEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer client.Close()

	fmt.Println("Connecting to Redis...")
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Redis is running:\n  docker-compose up -d redis", err)
	}
	fmt.Println("✓ Connected")

	step1_geofences(ctx, conn)
	step2_assignments(ctx, conn)
	step3_api_keys(ctx, client)

	fmt.Println("\n✅ Seed data loaded")
	fmt.Println("   Run next: go run ./cmd/tracker")
}

func step1_geofences(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Geofences ───────────────────────────")

	// Connaught Place depot — circular fence
	execOrFatal(ctx, conn, `
		INSERT INTO geofences
			(geofence_id, name, shape, center_latitude, center_longitude, radius_meters,
			 notify_on_enter, notify_on_exit)
		VALUES
			('gf_cp_depot', 'Connaught Place depot', 'CIRCLE', 28.6140, 77.2100, 200, true, true)
		ON CONFLICT (geofence_id) DO NOTHING;
	`, "gf_cp_depot (circle, 200m)")

	// Airport cargo area — polygon fence
	execOrFatal(ctx, conn, `
		INSERT INTO geofences
			(geofence_id, name, shape, vertices, notify_on_enter, notify_on_exit)
		VALUES
			('gf_airport_cargo', 'Airport cargo area', 'POLYGON',
			 '[{"latitude":28.5500,"longitude":77.0800},
			   {"latitude":28.5500,"longitude":77.1200},
			   {"latitude":28.5700,"longitude":77.1200},
			   {"latitude":28.5700,"longitude":77.0800}]'::jsonb,
			 true, false)
		ON CONFLICT (geofence_id) DO NOTHING;
	`, "gf_airport_cargo (polygon, enter only)")
}

func step2_assignments(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: Assignments ─────────────────────────")

	assignments := []struct{ fence, vehicle string }{
		{"gf_cp_depot", "DL01AB1234"},
		{"gf_cp_depot", "DL02CD5678"},
		{"gf_airport_cargo", "DL01AB1234"},
	}

	for _, a := range assignments {
		execOrFatal(ctx, conn, fmt.Sprintf(`
			INSERT INTO geofence_assignments (geofence_id, vehicle_id)
			VALUES ('%s', '%s')
			ON CONFLICT DO NOTHING;
		`, a.fence, a.vehicle), fmt.Sprintf("%s → %s", a.fence, a.vehicle))
	}
}

func step3_api_keys(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 3: Device API keys ─────────────────────")

	// Key pattern: vehicle:auth:{api_key} → vehicle_id
	// This is what the authenticator looks up at Level 2
	apiKeys := map[string]string{
		"vehicle:auth:dl01ab1234_key": "DL01AB1234",
		"vehicle:auth:dl02cd5678_key": "DL02CD5678",
		"vehicle:auth:test_key":       "TEST0001",
	}

	for key, vehicleID := range apiKeys {
		if err := client.Set(ctx, key, vehicleID, 0).Err(); err != nil {
			log.Fatalf("Failed to set key %s: %v", key, err)
		}
		fmt.Printf("  ✓ %-35s → %s\n", key, vehicleID)
	}
}

func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	if _, err := conn.Exec(ctx, sql); err != nil {
		log.Fatalf("Failed: %s: %v", label, err)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func seedGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
