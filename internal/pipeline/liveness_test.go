package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/tracker/internal/domain"
	"fleet-monitor/tracker/internal/fanout"
	"fleet-monitor/tracker/internal/track"
)

type stubLiveness struct {
	events []domain.Event
	snaps  map[string]domain.TrackSnapshot
}

func (s *stubLiveness) CheckLiveness(time.Time) []domain.Event { return s.events }

func (s *stubLiveness) CurrentState(vehicleID string) (domain.TrackSnapshot, error) {
	snap, ok := s.snaps[vehicleID]
	if !ok {
		return domain.TrackSnapshot{}, track.ErrVehicleNotFound
	}
	return snap, nil
}

type stubClaimer struct {
	allow bool
	calls int
}

func (s *stubClaimer) ClaimOfflineAlert(context.Context, string, time.Duration) (bool, error) {
	s.calls++
	return s.allow, nil
}

func offlineEvent(vehicleID string) domain.Event {
	return domain.Event{
		Kind:      domain.EventAlert,
		VehicleID: vehicleID,
		Alert:     &domain.Alert{VehicleID: vehicleID, Kind: domain.AlertOffline},
	}
}

func TestLivenessTickPublishesOfflineAlerts(t *testing.T) {
	source := &stubLiveness{
		events: []domain.Event{offlineEvent("DL01AB1234")},
		snaps: map[string]domain.TrackSnapshot{
			"DL01AB1234": {VehicleID: "DL01AB1234", FleetID: "fleet_delhi"},
		},
	}
	hub := fanout.NewHub(8)
	sub := hub.SubscribeVehicle("DL01AB1234")

	c := NewLivenessChecker(source, hub, nil, nil, time.Second, time.Minute)
	c.Tick(context.Background(), time.Now())

	select {
	case update := <-sub.C:
		require.Len(t, update.Events, 1)
		assert.Equal(t, domain.AlertOffline, update.Events[0].Alert.Kind)
		assert.Equal(t, "fleet_delhi", update.Snapshot.FleetID)
	case <-time.After(time.Second):
		t.Fatal("no update published for offline vehicle")
	}
}

func TestLivenessTickHonorsClaimDenial(t *testing.T) {
	source := &stubLiveness{
		events: []domain.Event{offlineEvent("DL01AB1234")},
		snaps: map[string]domain.TrackSnapshot{
			"DL01AB1234": {VehicleID: "DL01AB1234"},
		},
	}
	hub := fanout.NewHub(8)
	sub := hub.SubscribeVehicle("DL01AB1234")
	claimer := &stubClaimer{allow: false}

	c := NewLivenessChecker(source, hub, nil, claimer, time.Second, time.Minute)
	c.Tick(context.Background(), time.Now())

	// Another instance holds the claim: nothing goes out from this one.
	assert.Equal(t, 1, claimer.calls)
	select {
	case <-sub.C:
		t.Fatal("published despite a denied offline claim")
	default:
	}
}

func TestLivenessTickSkipsUnknownVehicles(t *testing.T) {
	source := &stubLiveness{
		events: []domain.Event{offlineEvent("DL99ZZ0001")},
		snaps:  map[string]domain.TrackSnapshot{},
	}
	hub := fanout.NewHub(8)
	sub := hub.SubscribeVehicle("DL99ZZ0001")

	c := NewLivenessChecker(source, hub, nil, nil, time.Second, time.Minute)
	c.Tick(context.Background(), time.Now())

	select {
	case <-sub.C:
		t.Fatal("published an update without a snapshot")
	default:
	}
}
