// Package server exposes the monitoring station's HTTP surface: the device
// view, allow-list management, station status, the streaming channel and
// metrics.
package server

import (
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rfsentry/cellmon/internal/monitor"
	"github.com/rfsentry/cellmon/internal/registry"
	"github.com/rfsentry/cellmon/internal/render"
	"github.com/rfsentry/cellmon/internal/scanlog"
)

// Server wires the HTTP handlers to the monitoring core.
type Server struct {
	monitor  *monitor.Monitor
	registry *registry.Registry
	allow    *registry.Allowlist
	hub      *monitor.Hub
	recorder *scanlog.Recorder // optional
	logger   *slog.Logger
}

// WithServerLogger sets the request logger.
func WithServerLogger(logger *slog.Logger) func(*Server) {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithWaterfall enables the waterfall endpoint backed by the scan log.
func WithWaterfall(rec *scanlog.Recorder) func(*Server) {
	return func(s *Server) {
		s.recorder = rec
	}
}

// New creates the server. Call Handler to obtain the route mux.
func New(mon *monitor.Monitor, reg *registry.Registry, allow *registry.Allowlist, hub *monitor.Hub, options ...func(*Server)) *Server {
	s := &Server{
		monitor:  mon,
		registry: reg,
		allow:    allow,
		hub:      hub,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Handler returns the route mux for the service surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/devices", s.handleDevices)
	mux.HandleFunc("GET /api/whitelist", s.handleWhitelist)
	mux.HandleFunc("POST /api/whitelist/{id}", s.handleWhitelistAdd)
	mux.HandleFunc("DELETE /api/whitelist/{id}", s.handleWhitelistRemove)
	mux.HandleFunc("GET /api/station", s.handleStation)
	mux.HandleFunc("GET /api/spectrum/waterfall", s.handleWaterfall)
	mux.Handle("GET /ws", s.hub)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// handleDevices serves the merged device list, the latest spectrum snapshot
// and the station location, in the same shape the streaming channel pushes.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CurrentUpdate())
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"whitelist": s.allow.All()})
}

// whitelistRequest is the operator-supplied body for an allow-list upsert.
type whitelistRequest struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Frequency float64    `json:"frequency"`
	FirstSeen *time.Time `json:"first_seen,omitempty"`
}

func (req *whitelistRequest) validate() error {
	if req.Name == "" {
		return errors.New("name is required")
	}
	if req.Frequency < 0 {
		return errors.New("frequency must not be negative")
	}
	return nil
}

// handleWhitelistAdd upserts an allow-list entry and cascades the derived
// fields into the registry. A malformed request is rejected before any
// persisted state is touched.
func (s *Server) handleWhitelistAdd(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req whitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry := registry.Entry{
		Name:      req.Name,
		Type:      req.Type,
		Frequency: req.Frequency,
	}
	if req.FirstSeen != nil {
		entry.FirstSeen = *req.FirstSeen
	}

	if err := s.allow.Put(id, entry); err != nil {
		s.logger.Error("persisting allow-list", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to persist allow-list")
		return
	}
	s.registry.ApplyAllowlist(id)

	s.logger.Info("device added to allow-list", slog.String("id", id), slog.String("name", req.Name))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "device " + id + " added to whitelist",
	})
}

// handleWhitelistRemove removes an allow-list entry. The registry keeps the
// device; only its derived whitelisted state is cleared.
func (s *Server) handleWhitelistRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.allow.Remove(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "device "+id+" not found in whitelist")
			return
		}
		s.logger.Error("persisting allow-list", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to persist allow-list")
		return
	}
	s.registry.ApplyAllowlist(id)

	s.logger.Info("device removed from allow-list", slog.String("id", id))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "device " + id + " removed from whitelist",
	})
}

func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Station())
}

// handleWaterfall renders recent spectrum history as a PNG.
func (s *Server) handleWaterfall(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeError(w, http.StatusNotFound, "scan log is not enabled")
		return
	}

	window := 15 * time.Minute
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid window duration")
			return
		}
		window = d
	}

	opts := render.Options{Width: queryInt(r, "width"), Height: queryInt(r, "height")}

	rows, err := s.recorder.SnapshotsSince(time.Now().Add(-window), 2000)
	if err != nil {
		s.logger.Error("reading scan log", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read scan log")
		return
	}

	img, err := render.Waterfall(rows, opts)
	if err != nil {
		if errors.Is(err, render.ErrNoData) {
			writeError(w, http.StatusNotFound, "no spectrum data in window")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		s.logger.Warn("encoding waterfall", slog.String("error", err.Error()))
	}
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
