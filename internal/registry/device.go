package registry

import (
	"time"

	"github.com/rfsentry/cellmon/internal/band"
)

// Location is an optional device position estimate.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Device is the canonical detected-device record. The id is derived
// deterministically from signal features so that repeated observations of
// one emitter merge rather than duplicate.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	Technology band.Technology `json:"type"`
	Band       int             `json:"band,omitempty"`
	Link       band.Link       `json:"link,omitempty"`

	FrequencyHz float64 `json:"frequency"`
	PowerDB     float64 `json:"power"`
	Confidence  float64 `json:"confidence"`

	// IdentityCode is a synthetic, checksum-valid identity-shaped string. It
	// is never a captured real-world identifier unless IdentityExtracted is
	// set by an external decoder.
	IdentityCode      string `json:"identity_code,omitempty"`
	IdentitySource    string `json:"identity_source,omitempty"`
	IdentityExtracted bool   `json:"identity_extracted"`

	Manufacturer string `json:"manufacturer,omitempty"`
	Subtype      string `json:"subtype,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	Location *Location `json:"location,omitempty"`

	// Whitelisted is derived from allow-list membership and recomputed on
	// every upsert and snapshot; it is never authoritative on its own.
	Whitelisted bool `json:"whitelisted"`
}

func (d *Device) clone() *Device {
	c := *d
	if d.Location != nil {
		loc := *d.Location
		c.Location = &loc
	}
	return &c
}
