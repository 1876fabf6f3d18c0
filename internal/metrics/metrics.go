package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	SamplesReceived  atomic.Int64
	SamplesRejected  atomic.Int64
	StaleDropped     atomic.Int64
	DuplicateDropped atomic.Int64
	TripsStarted     atomic.Int64
	TripsCompleted   atomic.Int64
	TripsDiscarded   atomic.Int64
	GeofenceEvents   atomic.Int64
	AlertsEmitted    atomic.Int64
	InvariantResets  atomic.Int64
	SubscriberDrops  atomic.Int64
	DBWriteSuccess   atomic.Int64
	DBWriteFailures  atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "tracker_samples_received_total %d\n", SamplesReceived.Load())
	fmt.Fprintf(w, "tracker_samples_rejected_total %d\n", SamplesRejected.Load())
	fmt.Fprintf(w, "tracker_stale_dropped_total %d\n", StaleDropped.Load())
	fmt.Fprintf(w, "tracker_duplicate_dropped_total %d\n", DuplicateDropped.Load())
	fmt.Fprintf(w, "tracker_trips_started_total %d\n", TripsStarted.Load())
	fmt.Fprintf(w, "tracker_trips_completed_total %d\n", TripsCompleted.Load())
	fmt.Fprintf(w, "tracker_trips_discarded_total %d\n", TripsDiscarded.Load())
	fmt.Fprintf(w, "tracker_geofence_events_total %d\n", GeofenceEvents.Load())
	fmt.Fprintf(w, "tracker_alerts_emitted_total %d\n", AlertsEmitted.Load())
	fmt.Fprintf(w, "tracker_invariant_resets_total %d\n", InvariantResets.Load())
	fmt.Fprintf(w, "tracker_subscriber_drops_total %d\n", SubscriberDrops.Load())
	fmt.Fprintf(w, "tracker_db_write_success_total %d\n", DBWriteSuccess.Load())
	fmt.Fprintf(w, "tracker_db_write_failures_total %d\n", DBWriteFailures.Load())
}
