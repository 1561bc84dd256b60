package sdr

import (
	"context"
	"time"
)

// SampleBuffer holds one capture of raw complex baseband samples together
// with the parameters used to acquire it. A buffer is ephemeral: it is owned
// by the analyzer invocation that consumes it and is never retained.
type SampleBuffer struct {
	Timestamp time.Time

	CenterFreq int64 // Hz
	SampleRate int64 // Hz

	IQ []complex64
}

// Duration returns the time span covered by the buffer.
func (b *SampleBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.IQ)) / float64(b.SampleRate) * float64(time.Second))
}

// Source acquires raw samples for a requested center frequency. A failed
// capture returns an error and no buffer; callers treat it as a skipped
// cycle, not a fatal condition.
type Source interface {
	Capture(ctx context.Context, centerFreq int64) (*SampleBuffer, error)
	Name() string
}
