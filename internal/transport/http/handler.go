package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fleet-monitor/tracker/internal/domain"
	"fleet-monitor/tracker/internal/fanout"
	"fleet-monitor/tracker/internal/metrics"
	"fleet-monitor/tracker/internal/normalize"
	"fleet-monitor/tracker/internal/pipeline"
	"fleet-monitor/tracker/internal/track"
)

type Server struct {
	normalizer *normalize.Normalizer
	dispatcher *pipeline.Dispatcher
	tracker    *track.Tracker
	hub        *fanout.Hub
	authMW     *AuthMiddleware
}

func NewServer(
	normalizer *normalize.Normalizer,
	dispatcher *pipeline.Dispatcher,
	tracker *track.Tracker,
	hub *fanout.Hub,
	authMW *AuthMiddleware,
) *Server {
	return &Server{
		normalizer: normalizer,
		dispatcher: dispatcher,
		tracker:    tracker,
		hub:        hub,
		authMW:     authMW,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", metrics.HandleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		if s.authMW != nil {
			r.Use(s.authMW.Wrap)
		}
		r.Post("/samples", s.handleSubmit)
		r.Get("/vehicles/{vehicleID}/state", s.handleState)
		r.Get("/ws", s.handleWS)
	})

	return r
}

type submitResult struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// handleSubmit accepts one sample or a device-batched array of samples.
// Single rejects come back as 400 with the taxonomy reason; batches are
// 202 with per-item results, since one bad entry never blocks the rest.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	bound := BoundVehicle(r.Context())

	if isJSONArray(body) {
		var raws []normalize.RawSample
		if err := json.Unmarshal(body, &raws); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed batch"})
			return
		}
		samples, results := s.normalizer.NormalizeBatch(raws)

		out := make([]submitResult, len(results))
		for i, res := range results {
			out[i] = submitResult{Index: res.Index, Status: "accepted"}
			if res.Err != nil {
				metrics.SamplesRejected.Add(1)
				out[i].Status = "rejected"
				out[i].Reason = rejectionReason(res.Err)
			}
		}
		for _, sample := range samples {
			if bound != "" && sample.VehicleID != bound {
				continue
			}
			metrics.SamplesReceived.Add(1)
			s.dispatcher.Submit(sample)
		}
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"results": out})
		return
	}

	var raw normalize.RawSample
	if err := json.Unmarshal(body, &raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed sample"})
		return
	}
	sample, err := s.normalizer.Normalize(&raw)
	if err != nil {
		metrics.SamplesRejected.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": rejectionReason(err)})
		return
	}
	if bound != "" && sample.VehicleID != bound {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "API key not valid for this vehicle"})
		return
	}

	metrics.SamplesReceived.Add(1)
	s.dispatcher.Submit(sample)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicleID")
	snap, err := s.tracker.CurrentState(vehicleID)
	if err != nil {
		if errors.Is(err, track.ErrVehicleNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "vehicle not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// rejectionReason maps a normalization error onto the wire taxonomy.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinates):
		return "invalid_coordinates"
	case errors.Is(err, domain.ErrMissingField):
		return "missing_field"
	case errors.Is(err, domain.ErrUnparseableTimestamp):
		return "unparseable_timestamp"
	}
	return "invalid"
}

func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
