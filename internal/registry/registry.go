// Package registry holds the persistent, allow-list-aware store of all
// observed devices.
package registry

import (
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rfsentry/cellmon/internal/band"
	"github.com/rfsentry/cellmon/internal/identity"
)

const (
	// defaultSaveEvery is how many upserts may accumulate before the store
	// is written; full durability comes from the periodic flush loop and the
	// guaranteed flush on shutdown.
	defaultSaveEvery = 5

	// expirySweepInterval rate-limits the expiry sweep so it does not run on
	// every call.
	expirySweepInterval = time.Minute

	// locationDelta is the minimum movement, in degrees, before a device's
	// stored location is updated (roughly 10 meters).
	locationDelta = 1e-4
)

// Registry is the authoritative mapping of device id to detected device,
// merged with the allow-list. All mutations are serialized by a single
// mutex; reads for publishing take deep-copied snapshots.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Device
	dirty   int

	allow     *Allowlist
	store     jsonFile
	saveEvery int
	lastSweep time.Time
	logger    *slog.Logger
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) func(*Registry) {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithSaveEvery overrides the upsert count between throttled persists.
func WithSaveEvery(n int) func(*Registry) {
	return func(r *Registry) {
		if n > 0 {
			r.saveEvery = n
		}
	}
}

// Open loads the registry store from path. A missing or unparsable store
// initializes to empty rather than failing; corruption of the registry never
// touches the allow-list and vice versa.
func Open(path string, allow *Allowlist, options ...func(*Registry)) *Registry {
	r := &Registry{
		devices:   make(map[string]*Device),
		allow:     allow,
		store:     jsonFile{path: path},
		saveEvery: defaultSaveEvery,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(r)
	}

	devices := make(map[string]*Device)
	found, err := r.store.Load(&devices)
	switch {
	case err != nil:
		r.logger.Warn("registry store unreadable, starting empty", slog.String("error", err.Error()))
	case !found:
		r.logger.Info("no registry store, starting empty", slog.String("path", path))
	default:
		for id, d := range devices {
			if d.LastSeen.IsZero() {
				// A record without last_seen can never expire; drop it.
				continue
			}
			d.ID = id
			r.devices[id] = d
		}
		r.logger.Info("loaded device registry", slog.Int("devices", len(r.devices)))
	}

	return r
}

// Upsert merges one observation into the registry. A first observation sets
// first_seen = last_seen = now; later observations update only the fields
// the observation carries and never overwrite first_seen. Allow-list fields
// win over observed classification fields on every upsert.
func (r *Registry) Upsert(obs *Device, now time.Time) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[obs.ID]
	if !ok {
		d = obs.clone()
		d.FirstSeen = now
		r.devices[obs.ID] = d
		r.logger.Info("new device detected",
			slog.String("id", d.ID),
			slog.String("technology", string(d.Technology)),
			slog.Float64("frequency", d.FrequencyHz))
	} else {
		d.Technology = obs.Technology
		d.Band = obs.Band
		d.Link = obs.Link
		d.PowerDB = obs.PowerDB
		d.Confidence = obs.Confidence
		if obs.FrequencyHz != 0 && obs.FrequencyHz != d.FrequencyHz {
			d.FrequencyHz = obs.FrequencyHz
		}
		if obs.IdentityCode != "" {
			d.IdentityCode = obs.IdentityCode
			d.IdentitySource = obs.IdentitySource
			d.IdentityExtracted = obs.IdentityExtracted
		}
		if obs.Manufacturer != "" {
			d.Manufacturer = obs.Manufacturer
		}
		if obs.Subtype != "" {
			d.Subtype = obs.Subtype
		}
		if obs.Location != nil && movedBeyondDelta(d.Location, obs.Location) {
			loc := *obs.Location
			d.Location = &loc
		}
	}
	d.LastSeen = now

	r.applyAllowlistLocked(d)

	r.dirty++
	if r.dirty >= r.saveEvery {
		r.saveLocked()
	}

	return d.clone()
}

// ApplyAllowlist recomputes the derived allow-list fields for one device,
// used when an allow-list mutation must cascade into the registry. The
// registry entry itself is kept either way.
func (r *Registry) ApplyAllowlist(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return
	}
	r.applyAllowlistLocked(d)
	r.saveLocked()
}

func (r *Registry) applyAllowlistLocked(d *Device) {
	e, ok := r.allow.Get(d.ID)
	d.Whitelisted = ok
	if ok {
		d.Name = e.Name
		if e.Type != "" {
			d.Technology = band.Technology(e.Type)
		}
	}
}

// Expire removes entries whose last_seen is older than ttl. The sweep is
// rate-limited; calls inside the sweep interval are no-ops.
func (r *Registry) Expire(now time.Time, ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastSweep) < expirySweepInterval {
		return 0
	}
	r.lastSweep = now

	removed := 0
	for id, d := range r.devices {
		if now.Sub(d.LastSeen) > ttl {
			delete(r.devices, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("expired inactive devices", slog.Int("removed", removed))
		r.saveLocked()
	}
	return removed
}

// Matches returns the signal features of all current entries for the
// resolver's tolerance-based deduplication search.
func (r *Registry) Matches() []identity.Match {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]identity.Match, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, identity.Match{
			ID:          d.ID,
			FrequencyHz: d.FrequencyHz,
			PowerDB:     d.PowerDB,
		})
	}
	return out
}

// Snapshot returns deep copies of all devices, most recently seen first,
// with the derived whitelisted fields freshly recomputed. Publishing from a
// snapshot means a concurrent upsert can never corrupt a serialization.
func (r *Registry) Snapshot() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		r.applyAllowlistLocked(d)
		out = append(out, d.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// Get returns a copy of one device.
func (r *Registry) Get(id string) (*Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, false
	}
	r.applyAllowlistLocked(d)
	return d.clone(), true
}

// Len returns the number of tracked devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Flush writes the store unconditionally. It is called by the periodic
// persistence loop and once on shutdown.
func (r *Registry) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Registry) flushLocked() error {
	if err := r.store.Save(r.devices); err != nil {
		return err
	}
	r.dirty = 0
	return nil
}

// saveLocked is the throttled persist path: failures are logged, never
// propagated, so a full disk cannot stall the scan loop.
func (r *Registry) saveLocked() {
	if err := r.flushLocked(); err != nil {
		r.logger.Error("persisting device registry", slog.String("error", err.Error()))
	}
}

func movedBeyondDelta(prev, next *Location) bool {
	if prev == nil {
		return true
	}
	return abs(next.Latitude-prev.Latitude) > locationDelta ||
		abs(next.Longitude-prev.Longitude) > locationDelta
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
