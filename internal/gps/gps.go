// Package gps models the monitoring station's location source. A single
// background task owns the physical receiver; readers only ever see
// immutable snapshots.
package gps

import "time"

// staleAfter is how long a fix stays trusted without a fresh sentence.
const staleAfter = 5 * time.Second

// Location is one position fix with quality metadata.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"`
	Satellites int       `json:"num_satellites"`
	HDOP       float64   `json:"hdop"`
	Timestamp  time.Time `json:"timestamp"`
	Simulated  bool      `json:"simulated"`
}

// Status describes the provider backing the current fixes.
type Status struct {
	UsingRealSource bool `json:"using_real_source"`
	Connected       bool `json:"connected"`
}

// Provider yields the current station position. A nil Location means no fix
// is available yet; callers degrade to a last-known or default position.
type Provider interface {
	Location() *Location
	Status() Status
}

// Fallback serves fixes from the primary provider while it is connected and
// degrades to the secondary (typically a simulator) otherwise.
type Fallback struct {
	Primary   Provider
	Secondary Provider
}

func (f *Fallback) Location() *Location {
	if f.Primary != nil && f.Primary.Status().Connected {
		if loc := f.Primary.Location(); loc != nil {
			return loc
		}
	}
	if f.Secondary != nil {
		return f.Secondary.Location()
	}
	return nil
}

func (f *Fallback) Status() Status {
	if f.Primary != nil && f.Primary.Status().Connected {
		return f.Primary.Status()
	}
	if f.Secondary != nil {
		return f.Secondary.Status()
	}
	return Status{}
}
