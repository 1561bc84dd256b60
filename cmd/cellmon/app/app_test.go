package app

import (
	"testing"
	"time"
)

func TestMonitorConfig_Defaults(t *testing.T) {
	// An empty configuration still produces working intervals and payload
	// caps; zero values would busy-loop the monitor and publish uncapped
	// payloads.
	got := monitorConfig(&Config{})

	if got.ScanInterval != 2*time.Second {
		t.Errorf("ScanInterval = %v, want 2s", got.ScanInterval)
	}
	if got.PublishInterval != time.Second {
		t.Errorf("PublishInterval = %v, want 1s", got.PublishInterval)
	}
	if got.MaxDevices != defaultMaxDevices {
		t.Errorf("MaxDevices = %d, want %d", got.MaxDevices, defaultMaxDevices)
	}
	if got.SpectrumMaxBins != defaultSpectrumMaxBins {
		t.Errorf("SpectrumMaxBins = %d, want %d", got.SpectrumMaxBins, defaultSpectrumMaxBins)
	}
}

func TestMonitorConfig_ExplicitValuesKept(t *testing.T) {
	config := &Config{}
	config.Monitor.ScanInterval = Duration(5 * time.Second)
	config.Monitor.MaxDevices = 25
	config.Monitor.SpectrumMaxBins = 1024
	config.Registry.DeviceTTL = Duration(time.Minute)

	got := monitorConfig(config)

	if got.ScanInterval != 5*time.Second {
		t.Errorf("ScanInterval = %v, want 5s", got.ScanInterval)
	}
	if got.MaxDevices != 25 {
		t.Errorf("MaxDevices = %d, want 25", got.MaxDevices)
	}
	if got.SpectrumMaxBins != 1024 {
		t.Errorf("SpectrumMaxBins = %d, want 1024", got.SpectrumMaxBins)
	}
	if got.DeviceTTL != time.Minute {
		t.Errorf("DeviceTTL = %v, want 1m", got.DeviceTTL)
	}
}
