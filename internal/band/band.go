// Package band maps center frequencies onto known cellular allocations.
package band

// Technology is the cellular standard a frequency allocation belongs to.
type Technology string

const (
	GSM     Technology = "GSM"
	UMTS    Technology = "UMTS"
	LTE     Technology = "LTE"
	Unknown Technology = "Unknown"
)

// Link is the direction of the allocation the frequency falls into.
type Link string

const (
	Uplink   Link = "uplink"
	Downlink Link = "downlink"
)

// Classification is the result of a successful band lookup.
type Classification struct {
	Technology Technology
	Band       int
	Link       Link
}

type freqRange struct {
	low, high float64 // Hz, inclusive
}

func (r freqRange) contains(f float64) bool {
	return f >= r.low && f <= r.high
}

type allocation struct {
	band     int
	uplink   freqRange
	downlink freqRange
}

// GSM allocations keyed by common band name (850/900/1800/1900).
var gsmAllocations = []allocation{
	{850, freqRange{824.0e6, 849.0e6}, freqRange{869.0e6, 894.0e6}},
	{900, freqRange{890.0e6, 915.0e6}, freqRange{935.0e6, 960.0e6}},
	{1800, freqRange{1710.0e6, 1785.0e6}, freqRange{1805.0e6, 1880.0e6}},
	{1900, freqRange{1850.0e6, 1910.0e6}, freqRange{1930.0e6, 1990.0e6}},
}

// UMTS band I (2100 MHz), the globally common allocation.
var umtsAllocations = []allocation{
	{1, freqRange{1920.0e6, 1980.0e6}, freqRange{2110.0e6, 2170.0e6}},
}

// LTE allocations by E-UTRA band number.
var lteAllocations = []allocation{
	{1, freqRange{1920e6, 1980e6}, freqRange{2110e6, 2170e6}},
	{2, freqRange{1850e6, 1910e6}, freqRange{1930e6, 1990e6}},
	{3, freqRange{1710e6, 1785e6}, freqRange{1805e6, 1880e6}},
	{4, freqRange{1710e6, 1755e6}, freqRange{2110e6, 2155e6}},
	{5, freqRange{824e6, 849e6}, freqRange{869e6, 894e6}},
	{7, freqRange{2500e6, 2570e6}, freqRange{2620e6, 2690e6}},
	{12, freqRange{699e6, 716e6}, freqRange{729e6, 746e6}},
	{13, freqRange{777e6, 787e6}, freqRange{746e6, 756e6}},
	{17, freqRange{704e6, 716e6}, freqRange{734e6, 746e6}},
	{30, freqRange{2305e6, 2315e6}, freqRange{2350e6, 2360e6}},
}

// Classify returns the cellular allocation a frequency falls into, if any.
// Downlink ranges are checked before uplink because downlink emissions are
// the ones a passive monitor is more likely to attribute to a handset. A
// false return means the frequency is outside every known allocation and no
// device may be derived from it.
func Classify(freqHz float64) (Classification, bool) {
	tables := []struct {
		tech   Technology
		allocs []allocation
	}{
		{GSM, gsmAllocations},
		{UMTS, umtsAllocations},
		{LTE, lteAllocations},
	}

	for _, t := range tables {
		for _, a := range t.allocs {
			if a.downlink.contains(freqHz) {
				return Classification{Technology: t.tech, Band: a.band, Link: Downlink}, true
			}
		}
	}
	for _, t := range tables {
		for _, a := range t.allocs {
			if a.uplink.contains(freqHz) {
				return Classification{Technology: t.tech, Band: a.band, Link: Uplink}, true
			}
		}
	}

	return Classification{Technology: Unknown}, false
}
