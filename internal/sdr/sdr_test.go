package sdr

import (
	"errors"
	"testing"
	"time"
)

func TestSampleBuffer_Duration(t *testing.T) {
	b := &SampleBuffer{SampleRate: 1_000_000, IQ: make([]complex64, 500_000)}
	if got := b.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", got)
	}

	if got := (&SampleBuffer{}).Duration(); got != 0 {
		t.Errorf("Duration of zero-rate buffer = %v, want 0", got)
	}
}

func TestFindRuntime(t *testing.T) {
	// `ls` exists on any test host.
	if _, err := FindRuntime("ls"); err != nil {
		t.Errorf("FindRuntime(ls) failed: %v", err)
	}

	_, err := FindRuntime("definitely-not-a-real-capture-tool")
	if !errors.Is(err, ErrRuntimeNotFound) {
		t.Errorf("error = %v, want ErrRuntimeNotFound", err)
	}
}
