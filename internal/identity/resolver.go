// Package identity turns classified signals into stable device identities.
//
// Resolution is deterministic: repeated observations of the same emitter,
// within a tolerance window on frequency and power, always yield the same
// device id. Synthetic identity codes are explicitly tagged with the variant
// that produced them and are never presented as captured identities unless
// an external decoder actually extracted one.
package identity

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/rfsentry/cellmon/internal/band"
	"github.com/rfsentry/cellmon/internal/dsp"
)

// Default resolver thresholds.
const (
	DefaultMinPowerDB = -70.0
	DefaultMinBursts  = 3

	// Tolerance window for matching repeated observations of one emitter.
	FreqToleranceHz  = 50_000.0
	PowerToleranceDB = 5.0

	// Base-station heuristic: strong carrier with a flat envelope.
	infraMinPowerDB = -40.0
	infraMaxPAPRDB  = 3.0
)

// Class distinguishes handset-like emitters from network infrastructure.
type Class string

const (
	ClassHandset        Class = "handset"
	ClassInfrastructure Class = "base-station"
)

// Source names the variant that produced an identity code.
type Source string

const (
	SourceHeuristic Source = "heuristic-estimate"
	SourceDecoder   Source = "external-decoder"
)

// Identity is a device identifier plus the provenance of its code.
type Identity struct {
	Code      string
	Source    Source
	Extracted bool
}

// Extractor produces an identity code for a resolved device. The heuristic
// variant synthesizes one; a decoder variant reports a captured identity.
type Extractor interface {
	Extract(cls band.Classification, class Class, deviceID string, snap *dsp.Snapshot) Identity
}

// HeuristicExtractor synthesizes identity-shaped codes. It never claims
// extraction.
type HeuristicExtractor struct{}

func (HeuristicExtractor) Extract(cls band.Classification, class Class, deviceID string, _ *dsp.Snapshot) Identity {
	if class == ClassInfrastructure {
		return Identity{
			Code:   InfrastructureCode(cls.Technology, cls.Band, deviceID),
			Source: SourceHeuristic,
		}
	}
	return Identity{
		Code:   HandsetCode(cls.Technology, deviceID),
		Source: SourceHeuristic,
	}
}

// Decoder is an external protocol decoder capable of recovering a real
// hardware identity from a signal.
type Decoder interface {
	Decode(cls band.Classification, snap *dsp.Snapshot) (code string, ok bool)
}

// DecoderExtractor wraps an external decoder, falling back to the heuristic
// when the decoder recovers nothing. Only codes the decoder actually
// returned are flagged as extracted.
type DecoderExtractor struct {
	Decoder Decoder

	fallback HeuristicExtractor
}

func (e *DecoderExtractor) Extract(cls band.Classification, class Class, deviceID string, snap *dsp.Snapshot) Identity {
	if e.Decoder != nil {
		if code, ok := e.Decoder.Decode(cls, snap); ok {
			return Identity{Code: code, Source: SourceDecoder, Extracted: true}
		}
	}
	return e.fallback.Extract(cls, class, deviceID, snap)
}

// Match is an existing registry entry considered for deduplication.
type Match struct {
	ID          string
	FrequencyHz float64
	PowerDB     float64
}

// Candidate is a resolved device identity ready for the registry.
type Candidate struct {
	ID           string
	Class        Class
	Identity     Identity
	Manufacturer string
	Confidence   float64
}

// Resolver decides whether a classified signal represents a plausible device
// and derives its stable identity.
type Resolver struct {
	minPowerDB float64
	minBursts  int
	extractor  Extractor
}

// WithThresholds overrides the minimum power and burst count a signal needs
// before it is considered a device.
func WithThresholds(minPowerDB float64, minBursts int) func(*Resolver) {
	return func(r *Resolver) {
		r.minPowerDB = minPowerDB
		r.minBursts = minBursts
	}
}

// WithExtractor sets the identity extraction variant.
func WithExtractor(e Extractor) func(*Resolver) {
	return func(r *Resolver) {
		r.extractor = e
	}
}

// NewResolver creates a resolver with the default thresholds and the
// heuristic identity extractor.
func NewResolver(options ...func(*Resolver)) *Resolver {
	r := &Resolver{
		minPowerDB: DefaultMinPowerDB,
		minBursts:  DefaultMinBursts,
		extractor:  HeuristicExtractor{},
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Resolve decides if the classified signal is a plausible device. Signals
// below the power threshold or with too few bursts to distinguish from noise
// are rejected. When the signal matches an existing registry entry within
// the frequency/power tolerance window, that entry's id is reused instead of
// a new one being minted.
func (r *Resolver) Resolve(cls band.Classification, snap *dsp.Snapshot, existing []Match) (*Candidate, bool) {
	if snap.AvgPowerDB < r.minPowerDB {
		return nil, false
	}
	if snap.BurstCount < r.minBursts {
		return nil, false
	}

	freq := float64(snap.CenterFreq)
	id, matched := nearestMatch(existing, freq, snap.AvgPowerDB)
	if !matched {
		id = deriveID(freq, snap.AvgPowerDB, snap.BurstCount)
	}

	class := ClassHandset
	if snap.AvgPowerDB >= infraMinPowerDB && snap.PAPRDB <= infraMaxPAPRDB {
		class = ClassInfrastructure
	}

	return &Candidate{
		ID:           id,
		Class:        class,
		Identity:     r.extractor.Extract(cls, class, id, snap),
		Manufacturer: manufacturerLabel(cls),
		Confidence:   confidence(snap.AvgPowerDB, snap.BurstCount),
	}, true
}

// nearestMatch finds the closest existing entry within the tolerance window.
// Matching is tolerance-based, not exact: small jitter between repeated
// measurements of the same emitter must still resolve to one id.
func nearestMatch(existing []Match, freqHz, powerDB float64) (string, bool) {
	bestID := ""
	bestDelta := math.MaxFloat64
	for _, m := range existing {
		df := math.Abs(m.FrequencyHz - freqHz)
		dp := math.Abs(m.PowerDB - powerDB)
		if df >= FreqToleranceHz || dp >= PowerToleranceDB {
			continue
		}
		if df < bestDelta {
			bestDelta = df
			bestID = m.ID
		}
	}
	return bestID, bestID != ""
}

// deriveID hashes quantized signal features so that jittering repeated
// measurements still land in the same bucket.
func deriveID(freqHz, powerDB float64, bursts int) string {
	qFreq := int64(math.Round(freqHz / FreqToleranceHz))
	qPower := int64(math.Round(powerDB / PowerToleranceDB))
	qBursts := int64(bursts / DefaultMinBursts)

	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d:%d", qFreq, qPower, qBursts)
	return fmt.Sprintf("%08x", h.Sum64()&0xffffffff)
}

// confidence is a deterministic presentation score in [0, 1] built from
// burst density and strength above the detection threshold.
func confidence(powerDB float64, bursts int) float64 {
	strength := (powerDB - DefaultMinPowerDB) / 40.0
	density := float64(bursts) / 10.0
	c := 0.3 + 0.4*clamp01(strength) + 0.3*clamp01(density)
	return math.Round(clamp01(c)*100) / 100
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// manufacturerLabel is a best-effort, deterministic band-to-vendor guess for
// display purposes only.
func manufacturerLabel(cls band.Classification) string {
	switch cls.Technology {
	case band.GSM:
		if cls.Band >= 1800 {
			return "Nokia"
		}
		return "Ericsson"
	case band.UMTS:
		return "Qualcomm"
	case band.LTE:
		switch {
		case cls.Band <= 5:
			return "Samsung"
		case cls.Band <= 17:
			return "Apple"
		default:
			return "Huawei"
		}
	default:
		return "Unknown"
	}
}
