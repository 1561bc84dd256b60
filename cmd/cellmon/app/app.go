package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rfsentry/cellmon/internal/dsp"
	"github.com/rfsentry/cellmon/internal/gps"
	"github.com/rfsentry/cellmon/internal/identity"
	"github.com/rfsentry/cellmon/internal/monitor"
	"github.com/rfsentry/cellmon/internal/registry"
	"github.com/rfsentry/cellmon/internal/scanlog"
	"github.com/rfsentry/cellmon/internal/sdr"
	"github.com/rfsentry/cellmon/internal/sdr/hackrf"
	"github.com/rfsentry/cellmon/internal/sdr/sim"
	"github.com/rfsentry/cellmon/internal/server"
)

const (
	devicesFile   = "devices_db.json"
	whitelistFile = "whitelist.json"

	defaultSampleRate = 10_000_000
	defaultNumSamples = 1 << 20
	defaultFFTSize    = 4096

	defaultMaxDevices      = 100
	defaultSpectrumMaxBins = 512

	shutdownTimeout = 5 * time.Second
)

// Run assembles the pipeline from the configuration and drives it until ctx
// is cancelled. On shutdown the registry and allow-list are flushed before
// Run returns.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	source, err := createSource(&config.Source)
	if err != nil {
		return fmt.Errorf("creating sample source: %w", err)
	}
	if closer, ok := source.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	logger.Info("sample source ready", slog.String("source", source.Name()))

	dataDir, err := ensureDataDir(config.Registry.DataDirectory)
	if err != nil {
		return err
	}

	allow := registry.OpenAllowlist(filepath.Join(dataDir, whitelistFile),
		registry.WithAllowlistLogger(logger))

	regOptions := []func(*registry.Registry){registry.WithLogger(logger)}
	if config.Registry.SaveEvery > 0 {
		regOptions = append(regOptions, registry.WithSaveEvery(config.Registry.SaveEvery))
	}
	reg := registry.Open(filepath.Join(dataDir, devicesFile), allow, regOptions...)
	logger.Info("device registry ready", slog.Int("devices", reg.Len()), slog.Int("whitelisted", allow.Len()))

	location := createLocation(ctx, &config.GPS, logger)

	hub := monitor.NewHub(logger)
	defer hub.Close()

	var recorder *scanlog.Recorder
	if config.ScanLog.Enabled {
		recorder = scanlog.New(config.ScanLog.Path)
		defer recorder.Close()
		logger.Info("scan log enabled", slog.String("path", config.ScanLog.Path))
	}

	fftSize := config.Monitor.FFTSize
	if fftSize <= 0 {
		fftSize = defaultFFTSize
	}

	monOptions := []func(*monitor.Monitor){monitor.WithMonitorLogger(logger)}
	srvOptions := []func(*server.Server){server.WithServerLogger(logger)}
	if recorder != nil {
		monOptions = append(monOptions, monitor.WithRecorder(recorder))
		srvOptions = append(srvOptions, server.WithWaterfall(recorder))
	}

	mon := monitor.New(source, dsp.NewAnalyzer(fftSize), identity.NewResolver(),
		reg, allow, location, hub, monitorConfig(config), monOptions...)

	srv := &http.Server{
		Addr:    config.Server.Listen,
		Handler: server.New(mon, reg, allow, hub, srvOptions...).Handler(),
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := mon.Run(ctx); err != nil {
			errs <- fmt.Errorf("monitor: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		mon.RunFlushLoop(ctx)
	}()

	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.String("error", err.Error()))
	}

	wg.Wait()

	if err := reg.Flush(); err != nil {
		logger.Error("flushing registry", slog.String("error", err.Error()))
	}
	if err := allow.Flush(); err != nil {
		logger.Error("flushing allow-list", slog.String("error", err.Error()))
	}

	return runErr
}

func createSource(config *SourceConfig) (sdr.Source, error) {
	switch config.Type {
	case SourceHackRF:
		cfg := config.HackRF
		if cfg == nil {
			cfg = &hackrf.Config{SampleRate: defaultSampleRate, NumSamples: defaultNumSamples}
		}
		return hackrf.New(cfg)

	case SourceSimulator, "":
		return sim.New(defaultSampleRate, defaultNumSamples, time.Now().UnixNano()), nil
	}
	return nil, fmt.Errorf("unknown source type '%s'", config.Type)
}

// createLocation builds the location provider. A configured serial receiver
// is wrapped with a simulated fallback so the station always reports a
// position.
func createLocation(ctx context.Context, config *GPSConfig, logger *slog.Logger) gps.Provider {
	simulated := gps.NewSimulator(time.Now().UnixNano())
	if config.Simulate || config.SerialPort == "" {
		logger.Info("using simulated location source")
		return simulated
	}

	serial := gps.NewSerial(config.SerialPort, gps.WithSerialLogger(logger))
	serial.Start(ctx)
	logger.Info("using serial location source", slog.String("port", config.SerialPort))

	return &gps.Fallback{Primary: serial, Secondary: simulated}
}

func monitorConfig(config *Config) monitor.Config {
	return monitor.Config{
		ScanInterval:     durationOr(config.Monitor.ScanInterval, 2*time.Second),
		IdleInterval:     durationOr(config.Monitor.IdleInterval, 10*time.Second),
		PublishInterval:  durationOr(config.Monitor.PublishInterval, time.Second),
		LocationInterval: durationOr(config.Monitor.LocationInterval, 10*time.Second),
		DeviceTTL:        durationOr(config.Registry.DeviceTTL, 5*time.Minute),
		FlushInterval:    durationOr(config.Registry.FlushInterval, 5*time.Minute),
		MaxDevices:       intOr(config.Monitor.MaxDevices, defaultMaxDevices),
		SpectrumMaxBins:  intOr(config.Monitor.SpectrumMaxBins, defaultSpectrumMaxBins),
	}
}

func durationOr(d Duration, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d.Std()
}

func intOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func ensureDataDir(dir string) (string, error) {
	if dir == "" {
		dir = "data"
	}
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return dir, nil
}
