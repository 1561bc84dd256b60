// Package monitor drives the recurring acquire/analyze/merge/publish cycle
// and fans the resulting view out to live observers.
package monitor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rfsentry/cellmon/internal/band"
	"github.com/rfsentry/cellmon/internal/dsp"
	"github.com/rfsentry/cellmon/internal/gps"
	"github.com/rfsentry/cellmon/internal/identity"
	"github.com/rfsentry/cellmon/internal/registry"
	"github.com/rfsentry/cellmon/internal/scanlog"
	"github.com/rfsentry/cellmon/internal/sdr"
)

// Config holds the scheduler's rate and shaping knobs.
type Config struct {
	ScanInterval     time.Duration // minimum time between analysis cycles
	IdleInterval     time.Duration // cycle interval when no observers are connected
	PublishInterval  time.Duration // minimum time between broadcasts
	LocationInterval time.Duration // minimum time between location refreshes
	DeviceTTL        time.Duration // inactivity window before expiry
	FlushInterval    time.Duration // periodic full persistence interval

	MaxDevices      int // cap on devices per published payload
	SpectrumMaxBins int // downsample threshold for the spectrum series
}

// ScanBand is one stop in the frequency rotation. Weight is how many visits
// the band gets per full rotation; higher-yield bands are visited more
// often than strict round-robin would allow.
type ScanBand struct {
	CenterFreq int64
	Weight     int
}

// defaultScanPlan covers the common cellular allocations, weighted toward
// the bands where handset activity is most likely.
var defaultScanPlan = []ScanBand{
	{850_000_000, 2},   // GSM-850, LTE band 5
	{900_000_000, 2},   // GSM-900
	{1_800_000_000, 2}, // GSM-1800, LTE band 3
	{1_900_000_000, 1}, // GSM-1900, LTE band 2
	{2_100_000_000, 1}, // UMTS, LTE band 1
	{700_000_000, 1},   // LTE bands 12/13/17
	{2_600_000_000, 1}, // LTE band 7
}

// Monitor owns the pipeline: sample source in, observer broadcasts out.
type Monitor struct {
	source   sdr.Source
	analyzer *dsp.Analyzer
	resolver *identity.Resolver
	registry *registry.Registry
	allow    *registry.Allowlist
	location gps.Provider
	hub      *Hub
	recorder *scanlog.Recorder // optional
	cfg      Config
	logger   *slog.Logger

	rotation []int64
	rotIdx   int

	sessionID string

	mu           sync.Mutex
	lastSnapshot *dsp.Snapshot
	lastStation  *StationView
	lastLocation time.Time
	lastPublish  time.Time
}

// WithRecorder attaches the scan log recorder.
func WithRecorder(rec *scanlog.Recorder) func(*Monitor) {
	return func(m *Monitor) {
		m.recorder = rec
	}
}

// WithMonitorLogger sets the monitor logger.
func WithMonitorLogger(logger *slog.Logger) func(*Monitor) {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithScanPlan replaces the default frequency rotation.
func WithScanPlan(plan []ScanBand) func(*Monitor) {
	return func(m *Monitor) {
		m.rotation = expandPlan(plan)
	}
}

// New wires the pipeline together. The monitor does not start scanning
// until Run is called.
func New(source sdr.Source, analyzer *dsp.Analyzer, resolver *identity.Resolver,
	reg *registry.Registry, allow *registry.Allowlist, location gps.Provider,
	hub *Hub, cfg Config, options ...func(*Monitor)) *Monitor {

	m := &Monitor{
		source:   source,
		analyzer: analyzer,
		resolver: resolver,
		registry: reg,
		allow:    allow,
		location: location,
		hub:      hub,
		cfg:      cfg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		rotation: expandPlan(defaultScanPlan),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

func expandPlan(plan []ScanBand) []int64 {
	var rotation []int64
	for _, b := range plan {
		for i := 0; i < max(1, b.Weight); i++ {
			rotation = append(rotation, b.CenterFreq)
		}
	}
	return rotation
}

// Run drives the steady-state loop until ctx is cancelled: Idle / Acquire /
// Analyze / Merge / Publish. The loop finishes its current step before
// terminating, then Close performs the guaranteed final flush.
func (m *Monitor) Run(ctx context.Context) error {
	if m.recorder != nil {
		id, err := m.recorder.BeginSession(m.source.Name(), m.cfg)
		if err != nil {
			m.logger.Warn("scan log unavailable", slog.String("error", err.Error()))
			m.recorder = nil
		} else {
			m.sessionID = id
		}
	}

	m.logger.Info("monitor started", slog.String("source", m.source.Name()))

	for {
		interval := m.cfg.ScanInterval
		if m.hub.Count() == 0 {
			interval = m.cfg.IdleInterval
		}

		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping")
			return nil
		case <-time.After(interval):
		}

		m.cycle(ctx)
	}
}

// RunFlushLoop periodically persists the registry and allow-list,
// independent of upsert volume. It performs one final flush when the
// context ends.
func (m *Monitor) RunFlushLoop(ctx context.Context) {
	interval := m.cfg.FlushInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.flush()
			return
		case <-ticker.C:
			m.flush()
		}
	}
}

func (m *Monitor) flush() {
	outcome := "success"
	if err := m.registry.Flush(); err != nil {
		m.logger.Error("flushing registry", slog.String("error", err.Error()))
		outcome = "error"
	}
	if err := m.allow.Flush(); err != nil {
		m.logger.Error("flushing allow-list", slog.String("error", err.Error()))
		outcome = "error"
	}
	registryFlushes.WithLabelValues(outcome).Inc()
}

// cycle performs one Acquire → Analyze → Merge → Publish pass. Any failure
// skips the rest of the cycle; nothing here is fatal.
func (m *Monitor) cycle(ctx context.Context) {
	now := time.Now().UTC()
	freq := m.nextFrequency()

	// Acquire. The external capture may block; no shared lock is held here.
	buf, err := m.source.Capture(ctx, freq)
	if err != nil {
		if ctx.Err() == nil {
			freqSI, suffix := humanize.ComputeSI(float64(freq))
			m.logger.Warn("capture failed, skipping cycle",
				slog.String("frequency", humanize.FtoaWithDigits(freqSI, 1)+suffix+"Hz"),
				slog.String("error", err.Error()))
		}
		scanCycles.WithLabelValues("capture_failed").Inc()
		return
	}

	// Analyze.
	snap, err := m.analyzer.Analyze(buf)
	if err != nil {
		m.logger.Warn("analysis failed", slog.String("error", err.Error()))
		scanCycles.WithLabelValues("analyze_failed").Inc()
		return
	}

	m.mu.Lock()
	m.lastSnapshot = snap
	m.mu.Unlock()

	m.refreshLocation(now)

	// Merge: classification gates device creation; a frequency outside all
	// cellular tables never fabricates a device.
	if cls, ok := band.Classify(float64(snap.CenterFreq)); ok {
		m.mergeDetection(cls, snap, now)
	}
	m.registry.Expire(now, m.cfg.DeviceTTL)
	trackedDevices.Set(float64(m.registry.Len()))

	if m.recorder != nil {
		if err := m.recorder.RecordSnapshot(m.sessionID, snap); err != nil {
			m.logger.Warn("recording snapshot", slog.String("error", err.Error()))
		}
	}

	scanCycles.WithLabelValues("ok").Inc()

	// Publish.
	m.publish(now)
}

func (m *Monitor) mergeDetection(cls band.Classification, snap *dsp.Snapshot, now time.Time) {
	cand, ok := m.resolver.Resolve(cls, snap, m.registry.Matches())
	if !ok {
		return
	}

	obs := &registry.Device{
		ID:                cand.ID,
		Technology:        cls.Technology,
		Band:              cls.Band,
		Link:              cls.Link,
		FrequencyHz:       float64(snap.CenterFreq),
		PowerDB:           snap.AvgPowerDB,
		Confidence:        cand.Confidence,
		IdentityCode:      cand.Identity.Code,
		IdentitySource:    string(cand.Identity.Source),
		IdentityExtracted: cand.Identity.Extracted,
		Manufacturer:      cand.Manufacturer,
		Subtype:           string(cand.Class),
	}
	if loc := m.stationLocation(); loc != nil {
		obs.Location = &registry.Location{Latitude: loc.Latitude, Longitude: loc.Longitude}
	}

	m.registry.Upsert(obs, now)
	detections.WithLabelValues(string(cls.Technology)).Inc()

	if m.recorder != nil {
		err := m.recorder.RecordObservation(m.sessionID, scanlog.Observation{
			Timestamp:  now,
			DeviceID:   cand.ID,
			Technology: cls.Technology,
			Band:       cls.Band,
			Link:       cls.Link,
			Frequency:  float64(snap.CenterFreq),
			PowerDB:    snap.AvgPowerDB,
			BurstCount: snap.BurstCount,
		})
		if err != nil {
			m.logger.Warn("recording observation", slog.String("error", err.Error()))
		}
	}
}

// refreshLocation updates the cached station view on its own, longer
// interval. A provider without a fix degrades to the last-known view.
func (m *Monitor) refreshLocation(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastLocation) < m.cfg.LocationInterval && m.lastStation != nil {
		return
	}
	m.lastLocation = now

	status := m.location.Status()
	view := &StationView{
		UsingRealSource: status.UsingRealSource,
		Connected:       status.Connected,
	}
	if loc := m.location.Location(); loc != nil {
		view.Location = loc
	} else if m.lastStation != nil {
		view.Location = m.lastStation.Location
	}
	m.lastStation = view
}

func (m *Monitor) stationLocation() *gps.Location {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastStation == nil {
		return nil
	}
	return m.lastStation.Location
}

func (m *Monitor) publish(now time.Time) {
	connectedObservers.Set(float64(m.hub.Count()))
	if m.hub.Count() == 0 {
		return
	}

	m.mu.Lock()
	if now.Sub(m.lastPublish) < m.cfg.PublishInterval {
		m.mu.Unlock()
		return
	}
	m.lastPublish = now
	m.mu.Unlock()

	payload, err := json.Marshal(m.CurrentUpdate())
	if err != nil {
		m.logger.Error("encoding update", slog.String("error", err.Error()))
		return
	}

	m.hub.Broadcast(payload)
	publishes.Inc()
}

// CurrentUpdate assembles the payload shape shared by the devices endpoint
// and the streaming channel. The registry is read through a snapshot copy,
// so serialization can proceed concurrently with upserts.
func (m *Monitor) CurrentUpdate() *Update {
	m.mu.Lock()
	snap := m.lastSnapshot
	station := m.lastStation
	m.mu.Unlock()

	return shapeUpdate(m.registry.Snapshot(), snap, station, m.cfg.MaxDevices, m.cfg.SpectrumMaxBins)
}

// Station returns the current station view, refreshing it if it has never
// been populated.
func (m *Monitor) Station() *StationView {
	m.refreshLocation(time.Now().UTC())

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastStation
}

func (m *Monitor) nextFrequency() int64 {
	freq := m.rotation[m.rotIdx%len(m.rotation)]
	m.rotIdx++
	return freq
}
