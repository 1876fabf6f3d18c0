// Package normalize validates raw device uploads and canonicalizes them
// into domain.LocationSample values. The normalizer is stateless; stale
// and duplicate detection against live vehicle state belongs to the
// tracker.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"fleet-monitor/tracker/internal/domain"
)

// RawSample is the wire shape accepted from devices. Required fields are
// pointers so a missing field can be told apart from a zero value.
type RawSample struct {
	VehicleID string          `json:"vehicle_id"`
	FleetID   string          `json:"fleet_id"`
	Latitude  *float64        `json:"latitude"`
	Longitude *float64        `json:"longitude"`
	SpeedKmh  *float64        `json:"speed_kmh"`
	Heading   *float64        `json:"heading,omitempty"`
	AltitudeM *float64        `json:"altitude_m,omitempty"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type Normalizer struct {
	skewTolerance time.Duration

	// now is swappable for tests.
	now func() time.Time
}

func New(skewTolerance time.Duration) *Normalizer {
	return &Normalizer{
		skewTolerance: skewTolerance,
		now:           time.Now,
	}
}

// Normalize validates one raw sample and resolves its ordering timestamp.
// A device timestamp further in the future than the skew tolerance is not
// trusted: the sample is re-stamped to receipt time for ordering while the
// device timestamp is kept for audit.
func (n *Normalizer) Normalize(raw *RawSample) (*domain.LocationSample, error) {
	if raw.VehicleID == "" {
		return nil, fmt.Errorf("vehicle_id: %w", domain.ErrMissingField)
	}
	if raw.Latitude == nil {
		return nil, fmt.Errorf("latitude: %w", domain.ErrMissingField)
	}
	if raw.Longitude == nil {
		return nil, fmt.Errorf("longitude: %w", domain.ErrMissingField)
	}
	if raw.SpeedKmh == nil {
		return nil, fmt.Errorf("speed_kmh: %w", domain.ErrMissingField)
	}
	if len(raw.Timestamp) == 0 {
		return nil, fmt.Errorf("timestamp: %w", domain.ErrMissingField)
	}
	if *raw.Latitude < -90 || *raw.Latitude > 90 || *raw.Longitude < -180 || *raw.Longitude > 180 {
		return nil, fmt.Errorf("lat=%v lng=%v: %w", *raw.Latitude, *raw.Longitude, domain.ErrInvalidCoordinates)
	}

	deviceTS, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return nil, err
	}

	receivedAt := n.now()
	sample := &domain.LocationSample{
		VehicleID:       raw.VehicleID,
		FleetID:         raw.FleetID,
		Latitude:        *raw.Latitude,
		Longitude:       *raw.Longitude,
		SpeedKmh:        *raw.SpeedKmh,
		DeviceTimestamp: deviceTS,
		ReceivedAt:      receivedAt,
		Timestamp:       deviceTS,
	}
	if raw.Heading != nil {
		sample.Heading = *raw.Heading
		sample.HasHeading = true
	}
	if raw.AltitudeM != nil {
		sample.AltitudeM = *raw.AltitudeM
	}

	if deviceTS.After(receivedAt.Add(n.skewTolerance)) {
		sample.Timestamp = receivedAt
		sample.Restamped = true
	}

	return sample, nil
}

// BatchResult pairs one raw batch entry with its outcome.
type BatchResult struct {
	Index  int
	Sample *domain.LocationSample
	Err    error
}

// NormalizeBatch validates every entry, sorts the valid ones by resolved
// timestamp and drops exact in-batch duplicates (same vehicle, timestamp
// and position). Invalid entries are reported per index; they never block
// the rest of the batch.
func (n *Normalizer) NormalizeBatch(raws []RawSample) ([]*domain.LocationSample, []BatchResult) {
	results := make([]BatchResult, 0, len(raws))
	samples := make([]*domain.LocationSample, 0, len(raws))

	for i := range raws {
		s, err := n.Normalize(&raws[i])
		results = append(results, BatchResult{Index: i, Sample: s, Err: err})
		if err == nil {
			samples = append(samples, s)
		}
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	deduped := samples[:0]
	for _, s := range samples {
		if len(deduped) > 0 {
			prev := deduped[len(deduped)-1]
			if prev.VehicleID == s.VehicleID && prev.SamePoint(s) {
				continue
			}
		}
		deduped = append(deduped, s)
	}

	return deduped, results
}

// parseTimestamp accepts either an RFC3339 string or unix seconds
// (integer or fractional), which covers every device firmware seen so far.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		ts, err := time.Parse(time.RFC3339, asString)
		if err != nil {
			return time.Time{}, fmt.Errorf("%q: %w", asString, domain.ErrUnparseableTimestamp)
		}
		return ts, nil
	}

	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		secs, err := strconv.ParseFloat(asNumber.String(), 64)
		if err != nil || secs <= 0 {
			return time.Time{}, fmt.Errorf("%q: %w", asNumber.String(), domain.ErrUnparseableTimestamp)
		}
		return time.Unix(0, int64(secs*float64(time.Second))).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%s: %w", string(raw), domain.ErrUnparseableTimestamp)
}
