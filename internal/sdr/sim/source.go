// Package sim provides a software sample source for running the monitoring
// pipeline without radio hardware attached.
package sim

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rfsentry/cellmon/internal/sdr"
)

const Device = "Simulator"

// Source generates band-plausible bursty I/Q buffers. Output is
// deterministic for a given seed and capture sequence.
type Source struct {
	sampleRate int64
	numSamples int

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a simulated source producing numSamples complex samples per
// capture at the given rate.
func New(sampleRate int64, numSamples int, seed int64) *Source {
	if numSamples <= 0 {
		numSamples = 1 << 16
	}
	return &Source{
		sampleRate: sampleRate,
		numSamples: numSamples,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (s *Source) Name() string { return Device }

// Capture synthesizes a buffer containing noise plus a handful of short
// carrier bursts offset from the center frequency.
func (s *Source) Capture(ctx context.Context, centerFreq int64) (*sdr.SampleBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	iq := make([]complex64, s.numSamples)
	for i := range iq {
		iq[i] = complex(float32(s.rng.NormFloat64())*0.01, float32(s.rng.NormFloat64())*0.01)
	}

	// Bursts of a few hundred microseconds, spaced through the buffer.
	burstLen := int(float64(s.sampleRate) * 500e-6)
	if burstLen < 1 {
		burstLen = 1
	}
	numBursts := 3 + s.rng.Intn(4)
	toneHz := 25e3 + s.rng.Float64()*50e3
	amp := 0.3 + s.rng.Float64()*0.4

	for b := 0; b < numBursts; b++ {
		start := s.rng.Intn(max(1, s.numSamples-burstLen))
		for i := 0; i < burstLen && start+i < s.numSamples; i++ {
			phase := 2 * math.Pi * toneHz * float64(i) / float64(s.sampleRate)
			iq[start+i] += complex(float32(amp*math.Cos(phase)), float32(amp*math.Sin(phase)))
		}
	}

	return &sdr.SampleBuffer{
		Timestamp:  time.Now().UTC(),
		CenterFreq: centerFreq,
		SampleRate: s.sampleRate,
		IQ:         iq,
	}, nil
}
