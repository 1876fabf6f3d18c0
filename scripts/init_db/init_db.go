package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "fleet_user"),
		dbGetEnv("DB_PASSWORD", "fleet_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fleet_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_trips_table(ctx, conn)
	step2_geofence_tables(ctx, conn)
	step3_alerts_table(ctx, conn)
	step4_indexes(ctx, conn)
	step5_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run ./scripts/seed_geofences")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — trips table
// ─────────────────────────────────────────────────────────────
func step1_trips_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: trips table ─────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS trips (
			trip_id          UUID             PRIMARY KEY,
			vehicle_id       TEXT             NOT NULL,
			fleet_id         TEXT             NOT NULL DEFAULT '',

			start_time       TIMESTAMPTZ      NOT NULL,
			end_time         TIMESTAMPTZ,
			start_latitude   DOUBLE PRECISION NOT NULL,
			start_longitude  DOUBLE PRECISION NOT NULL,
			end_latitude     DOUBLE PRECISION,
			end_longitude    DOUBLE PRECISION,

			distance_meters  DOUBLE PRECISION NOT NULL DEFAULT 0,
			duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_speed_kmh    DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_speed_kmh    DOUBLE PRECISION NOT NULL DEFAULT 0,

			status           TEXT             NOT NULL,

			CONSTRAINT chk_trip_status CHECK (
				status IN ('ONGOING', 'COMPLETED')
			)
		);
	`, "trips table created")
}

// ─────────────────────────────────────────────────────────────
// Step 2 — geofences + assignments + events
// ─────────────────────────────────────────────────────────────
func step2_geofence_tables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: geofence tables ─────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geofences (
			geofence_id      TEXT             PRIMARY KEY,
			name             TEXT             NOT NULL DEFAULT '',
			shape            TEXT             NOT NULL,

			-- Circle definition
			center_latitude  DOUBLE PRECISION NOT NULL DEFAULT 0,
			center_longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			radius_meters    DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Polygon vertex ring as [{"latitude":..,"longitude":..},..]
			vertices         JSONB,

			notify_on_enter  BOOLEAN          NOT NULL DEFAULT true,
			notify_on_exit   BOOLEAN          NOT NULL DEFAULT true,

			CONSTRAINT chk_shape CHECK (shape IN ('CIRCLE', 'POLYGON'))
		);
	`, "geofences table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geofence_assignments (
			geofence_id      TEXT NOT NULL REFERENCES geofences(geofence_id) ON DELETE CASCADE,
			vehicle_id       TEXT NOT NULL,
			PRIMARY KEY (geofence_id, vehicle_id)
		);
	`, "geofence_assignments table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geofence_events (
			id               BIGSERIAL        PRIMARY KEY,
			vehicle_id       TEXT             NOT NULL,
			geofence_id      TEXT             NOT NULL,
			transition       TEXT             NOT NULL,
			occurred_at      TIMESTAMPTZ      NOT NULL,
			latitude         DOUBLE PRECISION NOT NULL,
			longitude        DOUBLE PRECISION NOT NULL,

			CONSTRAINT chk_transition CHECK (transition IN ('ENTER', 'EXIT'))
		);
	`, "geofence_events table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — vehicle_alerts table
// ─────────────────────────────────────────────────────────────
func step3_alerts_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: vehicle_alerts table ────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS vehicle_alerts (
			id               BIGSERIAL        PRIMARY KEY,
			vehicle_id       TEXT             NOT NULL,
			fleet_id         TEXT             NOT NULL DEFAULT '',

			-- Must exactly match domain.AlertKind constants
			alert_kind       TEXT             NOT NULL,
			occurred_at      TIMESTAMPTZ      NOT NULL,
			details          JSONB,

			-- Operator acknowledgment — NULL means not yet acknowledged
			acknowledged_at  TIMESTAMPTZ,
			acknowledged_by  TEXT,

			CONSTRAINT chk_alert_kind CHECK (
				alert_kind IN ('OVERSPEED', 'IDLE', 'OFFLINE')
			)
		);
	`, "vehicle_alerts table created")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — Indexes
// ─────────────────────────────────────────────────────────────
func step4_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_trips_vehicle_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_trips_vehicle_time
				  ON trips (vehicle_id, start_time DESC);`,
			why: "query: trip history for one vehicle",
		},
		{
			name: "idx_trips_fleet_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_trips_fleet_time
				  ON trips (fleet_id, start_time DESC);`,
			why: "query: all trips in a fleet",
		},
		{
			name: "idx_geofence_events_vehicle_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_geofence_events_vehicle_time
				  ON geofence_events (vehicle_id, occurred_at DESC);`,
			why: "query: crossing history for one vehicle",
		},
		{
			name: "idx_assignments_vehicle",
			sql: `CREATE INDEX IF NOT EXISTS idx_assignments_vehicle
				  ON geofence_assignments (vehicle_id);`,
			why: "query: assignment cache refresh reads by vehicle",
		},
		{
			name: "idx_alerts_vehicle_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_vehicle_time
				  ON vehicle_alerts (vehicle_id, occurred_at DESC);`,
			why: "query: alert history for one vehicle",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql, idx.name)
		fmt.Printf("    why: %s\n", idx.why)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Verify
// ─────────────────────────────────────────────────────────────
func step5_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Verification ────────────────────────")

	tables := []string{"trips", "geofences", "geofence_assignments", "geofence_events", "vehicle_alerts"}
	for _, table := range tables {
		var count int
		err := conn.QueryRow(ctx,
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = $1", table,
		).Scan(&count)
		if err != nil || count == 0 {
			log.Fatalf("Verification failed for table %s: %v", table, err)
		}
		fmt.Printf("  ✓ table %s exists\n", table)
	}
}

func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	if _, err := conn.Exec(ctx, sql); err != nil {
		log.Fatalf("Failed: %s: %v", label, err)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
