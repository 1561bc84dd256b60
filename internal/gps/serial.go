package gps

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// reconnectDelay is the pause between attempts to reopen the receiver port.
const reconnectDelay = 3 * time.Second

// Serial reads NMEA sentences from a GPS receiver attached to a serial
// device path. One background goroutine owns the port and publishes fixes;
// Location and Status only read snapshots.
type Serial struct {
	port   string
	logger *slog.Logger

	mu       sync.Mutex
	current  *Location
	lastSeen time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WithSerialLogger sets the logger for the serial provider.
func WithSerialLogger(logger *slog.Logger) func(*Serial) {
	return func(s *Serial) {
		s.logger = logger.With(slog.String("port", s.port))
	}
}

// NewSerial creates a provider reading from the given device path. Call
// Start to begin reading.
func NewSerial(port string, options ...func(*Serial)) *Serial {
	s := &Serial{
		port:   port,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Start launches the reader goroutine. It returns immediately; connection
// failures are retried in the background and never surface to the caller.
func (s *Serial) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.readLoop(ctx)
	}()
}

// Stop terminates the reader and waits for it to exit.
func (s *Serial) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Serial) readLoop(ctx context.Context) {
	for {
		if err := s.readPort(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("receiver read failed, retrying", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Serial) readPort(ctx context.Context) error {
	f, err := os.Open(s.port)
	if err != nil {
		return err
	}
	defer f.Close()

	// Close the port when the context ends so the blocking read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-done:
		}
	}()

	s.logger.Info("reading GPS receiver")

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		loc, err := parseSentence(scanner.Text(), time.Now().UTC())
		if err != nil {
			continue // partial fixes and chatter sentences are expected
		}

		s.mu.Lock()
		// RMC fallback must not clobber a fresh GGA fix with metadata.
		if loc.Satellites == 0 && s.current != nil && time.Since(s.lastSeen) < staleAfter && s.current.Satellites > 0 {
			s.current.Latitude = loc.Latitude
			s.current.Longitude = loc.Longitude
			s.current.Timestamp = loc.Timestamp
		} else {
			s.current = loc
		}
		s.lastSeen = time.Now()
		s.mu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// Location returns the latest fix, or nil if none has arrived yet.
func (s *Serial) Location() *Location {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	loc := *s.current
	return &loc
}

// Status reports whether the receiver delivered a fix recently.
func (s *Serial) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		UsingRealSource: true,
		Connected:       s.current != nil && time.Since(s.lastSeen) <= staleAfter,
	}
}
