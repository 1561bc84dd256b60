package gps

import (
	"math/rand"
	"sync"
	"time"
)

// Default simulated station position when no receiver is available.
const (
	defaultLatitude  = 39.8283
	defaultLongitude = -98.5795
)

// Simulator produces plausible slowly drifting fixes, flagged as simulated,
// for running without a receiver.
type Simulator struct {
	mu  sync.Mutex
	loc Location
	rng *rand.Rand
}

// NewSimulator creates a simulator starting at the default position. Drift
// is deterministic for a given seed.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		loc: Location{
			Latitude:   defaultLatitude,
			Longitude:  defaultLongitude,
			Altitude:   10,
			Satellites: 8,
			HDOP:       1.2,
			Timestamp:  time.Now().UTC(),
			Simulated:  true,
		},
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Location returns the current simulated fix, nudging it slightly on each
// read to mimic receiver jitter.
func (s *Simulator) Location() *Location {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loc.Latitude += (s.rng.Float64() - 0.5) * 2e-4
	s.loc.Longitude += (s.rng.Float64() - 0.5) * 2e-4
	s.loc.HDOP = clamp(s.loc.HDOP+(s.rng.Float64()-0.5)*0.2, 0.8, 2.5)
	s.loc.Satellites = int(clamp(float64(s.loc.Satellites+s.rng.Intn(3)-1), 4, 12))
	s.loc.Timestamp = time.Now().UTC()

	loc := s.loc
	return &loc
}

func (s *Simulator) Status() Status {
	return Status{UsingRealSource: false, Connected: true}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
