package identity

import (
	"strings"
	"testing"

	"github.com/rfsentry/cellmon/internal/band"
	"github.com/rfsentry/cellmon/internal/dsp"
)

func snapshot(freqHz int64, avgDB, paprDB float64, bursts int) *dsp.Snapshot {
	return &dsp.Snapshot{
		CenterFreq: freqHz,
		AvgPowerDB: avgDB,
		PAPRDB:     paprDB,
		BurstCount: bursts,
	}
}

func TestResolver_RejectsWeakSignals(t *testing.T) {
	r := NewResolver()
	cls, _ := band.Classify(880e6)

	testCases := []struct {
		name string
		snap *dsp.Snapshot
	}{
		{"below power threshold", snapshot(880_000_000, -75, 8, 5)},
		{"too few bursts", snapshot(880_000_000, -60, 8, 2)},
		{"no bursts", snapshot(880_000_000, -50, 8, 0)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if c, ok := r.Resolve(cls, tc.snap, nil); ok {
				t.Errorf("Resolve accepted %s as device %s", tc.name, c.ID)
			}
		})
	}
}

func TestResolver_DeduplicatesWithinTolerance(t *testing.T) {
	r := NewResolver()
	cls, _ := band.Classify(850e6 + 20e6) // GSM-850 downlink

	first, ok := r.Resolve(cls, snapshot(870_000_000, -60, 8, 5), nil)
	if !ok {
		t.Fatal("first observation rejected")
	}

	// Second observation of the same emitter: 2 kHz and 2 dB of measurement
	// jitter, one extra burst. It must resolve to the same id.
	existing := []Match{{ID: first.ID, FrequencyHz: 870_000_000, PowerDB: -60}}
	second, ok := r.Resolve(cls, snapshot(870_002_000, -58, 8, 6), existing)
	if !ok {
		t.Fatal("second observation rejected")
	}
	if second.ID != first.ID {
		t.Errorf("jittered re-observation minted new id %s, want %s", second.ID, first.ID)
	}

	// Outside the tolerance window a new id is minted.
	third, ok := r.Resolve(cls, snapshot(870_200_000, -60, 8, 5), existing)
	if !ok {
		t.Fatal("third observation rejected")
	}
	if third.ID == first.ID {
		t.Error("observation 200 kHz away reused existing id")
	}
}

func TestResolver_NearestMatchWins(t *testing.T) {
	existing := []Match{
		{ID: "far", FrequencyHz: 870_040_000, PowerDB: -60},
		{ID: "near", FrequencyHz: 870_010_000, PowerDB: -60},
	}
	id, ok := nearestMatch(existing, 870_000_000, -60)
	if !ok || id != "near" {
		t.Errorf("nearestMatch = %q, %v; want near, true", id, ok)
	}
}

func TestResolver_DeterministicIDs(t *testing.T) {
	a := deriveID(870_000_000, -60, 5)
	b := deriveID(870_000_000, -60, 5)
	if a != b {
		t.Errorf("deriveID not deterministic: %s != %s", a, b)
	}
	if len(a) != 8 {
		t.Errorf("deriveID length = %d, want 8", len(a))
	}
}

func TestResolver_ClassifiesInfrastructure(t *testing.T) {
	r := NewResolver()
	cls, _ := band.Classify(945e6) // GSM-900 downlink

	// Strong, flat envelope: a broadcast carrier, not a handset.
	c, ok := r.Resolve(cls, snapshot(945_000_000, -30, 2, 10), nil)
	if !ok {
		t.Fatal("infrastructure signal rejected")
	}
	if c.Class != ClassInfrastructure {
		t.Errorf("class = %s, want %s", c.Class, ClassInfrastructure)
	}
	if !strings.HasPrefix(c.Identity.Code, "BTS-") {
		t.Errorf("infrastructure identity code = %s, want BTS- prefix", c.Identity.Code)
	}

	// Strong but bursty looks like a nearby handset.
	c, ok = r.Resolve(cls, snapshot(945_000_000, -30, 9, 10), nil)
	if !ok {
		t.Fatal("bursty signal rejected")
	}
	if c.Class != ClassHandset {
		t.Errorf("class = %s, want %s", c.Class, ClassHandset)
	}
}

func TestResolver_HeuristicIdentityNeverClaimsExtraction(t *testing.T) {
	r := NewResolver()
	cls, _ := band.Classify(880e6)

	c, ok := r.Resolve(cls, snapshot(880_000_000, -55, 8, 5), nil)
	if !ok {
		t.Fatal("signal rejected")
	}
	if c.Identity.Extracted {
		t.Error("heuristic identity flagged as extracted")
	}
	if c.Identity.Source != SourceHeuristic {
		t.Errorf("identity source = %s, want %s", c.Identity.Source, SourceHeuristic)
	}
	if !ValidCode(c.Identity.Code) {
		t.Errorf("synthetic code %s fails validation", c.Identity.Code)
	}
}

type stubDecoder struct {
	code string
	ok   bool
}

func (d stubDecoder) Decode(band.Classification, *dsp.Snapshot) (string, bool) {
	return d.code, d.ok
}

func TestDecoderExtractor(t *testing.T) {
	cls, _ := band.Classify(880e6)
	snap := snapshot(880_000_000, -55, 8, 5)

	e := &DecoderExtractor{Decoder: stubDecoder{code: "490154203237518", ok: true}}
	id := e.Extract(cls, ClassHandset, "a1b2c3d4", snap)
	if !id.Extracted || id.Source != SourceDecoder || id.Code != "490154203237518" {
		t.Errorf("decoded identity = %+v, want extracted decoder code", id)
	}

	// Decoder recovers nothing: fall back to the heuristic, unextracted.
	e = &DecoderExtractor{Decoder: stubDecoder{}}
	id = e.Extract(cls, ClassHandset, "a1b2c3d4", snap)
	if id.Extracted || id.Source != SourceHeuristic {
		t.Errorf("fallback identity = %+v, want unextracted heuristic", id)
	}
}

func TestConfidenceBounds(t *testing.T) {
	testCases := []struct {
		powerDB float64
		bursts  int
	}{
		{-70, 3}, {-30, 10}, {0, 100}, {-69.9, 3},
	}
	for _, tc := range testCases {
		c := confidence(tc.powerDB, tc.bursts)
		if c < 0 || c > 1 {
			t.Errorf("confidence(%.1f, %d) = %.2f, out of [0, 1]", tc.powerDB, tc.bursts, c)
		}
	}
	if a, b := confidence(-60, 5), confidence(-60, 5); a != b {
		t.Errorf("confidence not deterministic: %v != %v", a, b)
	}
}
