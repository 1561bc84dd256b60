package hackrf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rfsentry/cellmon/internal/sdr"
)

const (
	Runtime = "hackrf_transfer"
	Device  = "HackRF"
)

// Source captures raw I/Q buffers by shelling out to `hackrf_transfer`.
// Each Capture runs one invocation, reads the dumped interleaved int8 I/Q
// file and removes it.
type Source struct {
	binPath string
	config  *Config
	tempDir string
}

// New creates a HackRF capture source. It fails if `hackrf_transfer` is not
// installed or the configuration is invalid.
func New(config *Config) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	binPath, err := sdr.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("creating HackRF source: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "cellmon-hackrf-")
	if err != nil {
		return nil, fmt.Errorf("creating capture directory: %w", err)
	}

	return &Source{binPath: binPath, config: config, tempDir: tempDir}, nil
}

func (s *Source) Name() string { return Device }

// Capture runs hackrf_transfer for the requested center frequency and
// returns the captured buffer. The external call may block for the duration
// of the capture; cancellation via ctx kills the process.
func (s *Source) Capture(ctx context.Context, centerFreq int64) (*sdr.SampleBuffer, error) {
	outFile := filepath.Join(s.tempDir, "samples.bin")
	defer os.Remove(outFile)

	args, err := s.config.Args(outFile, centerFreq)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, s.binPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", Runtime, err, firstLine(out))
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		return nil, fmt.Errorf("reading capture file: %w", err)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("capture file is empty")
	}

	return &sdr.SampleBuffer{
		Timestamp:  time.Now().UTC(),
		CenterFreq: centerFreq,
		SampleRate: s.config.SampleRate,
		IQ:         iqFromBytes(data),
	}, nil
}

// Close removes the capture scratch directory.
func (s *Source) Close() error {
	return os.RemoveAll(s.tempDir)
}

// iqFromBytes converts interleaved signed 8-bit I/Q pairs into complex
// samples normalized to [-1, 1).
func iqFromBytes(data []byte) []complex64 {
	n := len(data) / 2
	iq := make([]complex64, n)
	for i := 0; i < n; i++ {
		re := float32(int8(data[2*i])) / 128
		im := float32(int8(data[2*i+1])) / 128
		iq[i] = complex(re, im)
	}
	return iq
}

func firstLine(out []byte) string {
	for i, b := range out {
		if b == '\n' {
			return string(out[:i])
		}
	}
	return string(out)
}
