package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-monitor/tracker/internal/config"
	"fleet-monitor/tracker/internal/domain"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) InsertTrip(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips
			(trip_id, vehicle_id, fleet_id, start_time, end_time,
			 start_latitude, start_longitude, end_latitude, end_longitude,
			 distance_meters, duration_seconds, avg_speed_kmh, max_speed_kmh, status)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (trip_id) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			end_latitude = EXCLUDED.end_latitude,
			end_longitude = EXCLUDED.end_longitude,
			distance_meters = EXCLUDED.distance_meters,
			duration_seconds = EXCLUDED.duration_seconds,
			avg_speed_kmh = EXCLUDED.avg_speed_kmh,
			max_speed_kmh = EXCLUDED.max_speed_kmh,
			status = EXCLUDED.status
	`
	_, err := s.pool.Exec(ctx, query,
		trip.ID,
		trip.VehicleID,
		trip.FleetID,
		trip.StartTime,
		trip.EndTime,
		trip.StartLatitude,
		trip.StartLongitude,
		trip.EndLatitude,
		trip.EndLongitude,
		trip.DistanceMeters,
		trip.DurationSeconds,
		trip.AvgSpeedKmh,
		trip.MaxSpeedKmh,
		string(trip.Status),
	)
	return err
}

var geofenceEventColumns = []string{
	"vehicle_id",
	"geofence_id",
	"transition",
	"occurred_at",
	"latitude",
	"longitude",
}

func (s *PostgresStore) CopyGeofenceEvents(ctx context.Context, events []*domain.GeofenceEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(events))
	for i, ev := range events {
		rows[i] = []interface{}{
			ev.VehicleID,
			ev.GeofenceID,
			string(ev.Transition),
			ev.At,
			ev.Latitude,
			ev.Longitude,
		}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"geofence_events"},
		geofenceEventColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("CopyFrom failed for batch of %d: %w", len(events), err)
	}

	return nil
}

func (s *PostgresStore) InsertAlert(ctx context.Context, alert *domain.Alert) error {
	details, err := json.Marshal(alert.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal alert details: %w", err)
	}

	query := `
		INSERT INTO vehicle_alerts
			(vehicle_id, fleet_id, alert_kind, occurred_at, details)
		VALUES
			($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`
	_, err = s.pool.Exec(ctx, query,
		alert.VehicleID,
		alert.FleetID,
		string(alert.Kind),
		alert.At,
		details,
	)
	return err
}

// LoadAssignments reads the geofence catalogue joined with vehicle
// assignments and returns the vehicle -> geofences mapping the tracker
// consults per sample.
func (s *PostgresStore) LoadAssignments(ctx context.Context) (map[string][]*domain.Geofence, error) {
	query := `
		SELECT g.geofence_id, g.name, g.shape,
		       g.center_latitude, g.center_longitude, g.radius_meters,
		       g.vertices, g.notify_on_enter, g.notify_on_exit,
		       a.vehicle_id
		FROM geofences g
		JOIN geofence_assignments a ON a.geofence_id = g.geofence_id
		ORDER BY a.vehicle_id, g.geofence_id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("assignment query failed: %w", err)
	}
	defer rows.Close()

	fences := make(map[string]*domain.Geofence)
	assignments := make(map[string][]*domain.Geofence)

	for rows.Next() {
		var (
			fence        domain.Geofence
			shape        string
			verticesJSON []byte
			vehicleID    string
		)
		if err := rows.Scan(
			&fence.ID, &fence.Name, &shape,
			&fence.Center.Latitude, &fence.Center.Longitude, &fence.RadiusMeters,
			&verticesJSON, &fence.NotifyOnEnter, &fence.NotifyOnExit,
			&vehicleID,
		); err != nil {
			return nil, fmt.Errorf("assignment scan failed: %w", err)
		}
		fence.Shape = domain.GeofenceShape(shape)
		if len(verticesJSON) > 0 {
			if err := json.Unmarshal(verticesJSON, &fence.Vertices); err != nil {
				return nil, fmt.Errorf("bad vertices for geofence %s: %w", fence.ID, err)
			}
		}

		// One shared instance per fence id regardless of how many
		// vehicles it is assigned to.
		shared, ok := fences[fence.ID]
		if !ok {
			f := fence
			shared = &f
			fences[fence.ID] = shared
		}
		assignments[vehicleID] = append(assignments[vehicleID], shared)
	}

	return assignments, rows.Err()
}
