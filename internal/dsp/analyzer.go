// Package dsp converts raw sample buffers into power spectra and burst
// statistics used by the classification pipeline.
package dsp

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/rfsentry/cellmon/internal/sdr"
)

const (
	// burstThresholdDB is how far above the noise floor instantaneous energy
	// must rise to be flagged as part of a burst.
	burstThresholdDB = 6.0

	// minBurstDuration is the expected minimum duration of a cellular burst,
	// used to size the noise floor estimation window.
	minBurstDuration = time.Millisecond
)

// ErrEmptyBuffer is returned when a capture yields no samples to analyze.
var ErrEmptyBuffer = errors.New("empty sample buffer")

// Snapshot is one analyzed frequency/power view at a point in time. It is
// produced once per analysis cycle and superseded by the next one.
type Snapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	CenterFreq int64     `json:"centerFreq"` // Hz
	SampleRate int64     `json:"sampleRate"` // Hz

	Freqs   []float64 `json:"freqs"`   // Hz, ascending
	PowerDB []float64 `json:"powerDb"` // normalized, max bin = 0 dB

	AvgPowerDB float64 `json:"avgPowerDb"` // mean signal power
	PAPRDB     float64 `json:"paprDb"`     // peak-to-average power ratio
	BurstCount int     `json:"burstCount"` // discrete energy bursts detected
}

// Analyzer computes spectra from sample buffers. The zero value is not
// usable; create one with NewAnalyzer.
type Analyzer struct {
	fftSize int
	window  []float64
}

// NewAnalyzer creates an analyzer with the given FFT size. Sizes that are
// not a power of two are rounded down to one.
func NewAnalyzer(fftSize int) *Analyzer {
	if fftSize < 64 {
		fftSize = 64
	}
	fftSize = largestPow2(fftSize)

	window := make([]float64, fftSize)
	for i := range window {
		// Hamming window to reduce spectral leakage.
		window[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))
	}

	return &Analyzer{fftSize: fftSize, window: window}
}

// Analyze produces a spectrum snapshot and burst statistics from one
// capture. It fails only on a nil or empty buffer; short buffers degrade to
// a coarser noise floor window instead of erroring.
func (a *Analyzer) Analyze(buf *sdr.SampleBuffer) (*Snapshot, error) {
	if buf == nil || len(buf.IQ) == 0 {
		return nil, ErrEmptyBuffer
	}

	n := a.fftSize
	if len(buf.IQ) < n {
		n = largestPow2(len(buf.IQ))
	}

	// Window and transform the leading n samples.
	in := make([]complex128, n)
	for i := 0; i < n; i++ {
		w := a.windowAt(i, n)
		in[i] = complex(float64(real(buf.IQ[i]))*w, float64(imag(buf.IQ[i]))*w)
	}

	fft := fourier.NewCmplxFFT(n)
	coeffs := fft.Coefficients(nil, in)

	// Shift so frequencies ascend from centerFreq - rate/2, then normalize
	// power to the strongest bin.
	power := make([]float64, n)
	freqs := make([]float64, n)
	maxDB := math.Inf(-1)
	for i := 0; i < n; i++ {
		src := (i + n/2) % n
		mag := cmplxAbs(coeffs[src])
		db := -200.0
		if mag > 0 {
			db = 20 * math.Log10(mag)
		}
		power[i] = db
		if db > maxDB {
			maxDB = db
		}
		freqs[i] = float64(buf.CenterFreq) + (float64(i)-float64(n)/2)*float64(buf.SampleRate)/float64(n)
	}
	for i := range power {
		power[i] -= maxDB
	}

	avgDB, peakDB := signalPower(buf.IQ)
	bursts := countBursts(buf.IQ, buf.SampleRate)

	return &Snapshot{
		Timestamp:  buf.Timestamp,
		CenterFreq: buf.CenterFreq,
		SampleRate: buf.SampleRate,
		Freqs:      freqs,
		PowerDB:    power,
		AvgPowerDB: avgDB,
		PAPRDB:     peakDB - avgDB,
		BurstCount: bursts,
	}, nil
}

func (a *Analyzer) windowAt(i, n int) float64 {
	if n == a.fftSize {
		return a.window[i]
	}
	if n < 2 {
		return 1.0
	}
	return 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
}

// signalPower returns the average and peak signal power in dB.
func signalPower(iq []complex64) (avgDB, peakDB float64) {
	var sum, peak float64
	for _, s := range iq {
		e := float64(real(s))*float64(real(s)) + float64(imag(s))*float64(imag(s))
		sum += e
		if e > peak {
			peak = e
		}
	}
	mean := sum / float64(len(iq))
	return toDB(mean), toDB(peak)
}

// countBursts detects discrete energy bursts: instantaneous energy is
// compared against a moving average noise floor and rising edges of the
// exceedance flag are counted.
func countBursts(iq []complex64, sampleRate int64) int {
	energy := make([]float64, len(iq))
	for i, s := range iq {
		energy[i] = float64(real(s))*float64(real(s)) + float64(imag(s))*float64(imag(s))
	}

	burstSamples := int(float64(sampleRate) * minBurstDuration.Seconds())
	if burstSamples < 1 {
		burstSamples = 1
	}

	windowSize := burstSamples * 10
	if windowSize > len(energy)/10 {
		windowSize = len(energy) / 10
	}
	if windowSize < 1 {
		windowSize = 1
	}

	floor := movingAverage(energy, windowSize)
	threshold := math.Pow(10, burstThresholdDB/10)

	count := 0
	prev := false
	for i := range energy {
		above := energy[i] > floor[i]*threshold
		if above && !prev {
			count++
		}
		prev = above
	}
	return count
}

// movingAverage computes a centered moving average using a running sum.
func movingAverage(v []float64, window int) []float64 {
	out := make([]float64, len(v))
	half := window / 2

	var sum float64
	lo, hi := 0, 0
	for i := range v {
		wantLo, wantHi := i-half, i+half+1
		if wantLo < 0 {
			wantLo = 0
		}
		if wantHi > len(v) {
			wantHi = len(v)
		}
		for hi < wantHi {
			sum += v[hi]
			hi++
		}
		for lo < wantLo {
			sum -= v[lo]
			lo++
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

func toDB(p float64) float64 {
	if p <= 0 {
		return -200
	}
	return 10 * math.Log10(p)
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func largestPow2(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
