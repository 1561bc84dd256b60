package monitor

import (
	"time"

	"github.com/rfsentry/cellmon/internal/dsp"
	"github.com/rfsentry/cellmon/internal/gps"
	"github.com/rfsentry/cellmon/internal/registry"
)

// SpectrumView is the published form of a spectrum snapshot, downsampled
// when the bin count exceeds the configured threshold.
type SpectrumView struct {
	Timestamp  time.Time `json:"timestamp"`
	CenterFreq int64     `json:"center_freq"`
	Freqs      []float64 `json:"frequencies"`
	PowerDB    []float64 `json:"power_db"`
}

// StationView is the monitoring station's position and provider status.
type StationView struct {
	Location        *gps.Location `json:"location,omitempty"`
	UsingRealSource bool          `json:"using_real_source"`
	Connected       bool          `json:"connected"`
}

// Update is the payload shape shared by GET /api/devices and the streaming
// channel: the merged device list, the latest spectrum and the station
// state.
type Update struct {
	Devices  []*registry.Device `json:"devices"`
	Spectrum *SpectrumView      `json:"spectrum,omitempty"`
	Station  *StationView       `json:"monitoring_station,omitempty"`
}

// shapeUpdate bounds the per-publish cost independent of registry size:
// devices are capped (most recently seen first, which Snapshot already
// guarantees) and the spectrum series is downsampled above maxBins.
func shapeUpdate(devices []*registry.Device, snap *dsp.Snapshot, station *StationView, maxDevices, maxBins int) *Update {
	if maxDevices > 0 && len(devices) > maxDevices {
		devices = devices[:maxDevices]
	}

	u := &Update{
		Devices: devices,
		Station: station,
	}
	if snap != nil {
		u.Spectrum = &SpectrumView{
			Timestamp:  snap.Timestamp,
			CenterFreq: snap.CenterFreq,
			Freqs:      downsample(snap.Freqs, maxBins),
			PowerDB:    downsample(snap.PowerDB, maxBins),
		}
	}
	return u
}

// downsample reduces a series to at most maxBins points by keeping every
// n-th value. Short series are returned as-is.
func downsample(v []float64, maxBins int) []float64 {
	if maxBins <= 0 || len(v) <= maxBins {
		return v
	}

	step := (len(v) + maxBins - 1) / maxBins
	out := make([]float64, 0, maxBins)
	for i := 0; i < len(v); i += step {
		out = append(out, v[i])
	}
	return out
}
