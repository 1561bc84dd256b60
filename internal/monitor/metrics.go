package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cellmon",
		Name:      "scan_cycles_total",
		Help:      "Scan cycles by outcome.",
	}, []string{"outcome"})

	detections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cellmon",
		Name:      "detections_total",
		Help:      "Resolved device detections by technology.",
	}, []string{"technology"})

	trackedDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cellmon",
		Name:      "tracked_devices",
		Help:      "Devices currently held by the registry.",
	})

	connectedObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cellmon",
		Name:      "connected_observers",
		Help:      "Live streaming observers.",
	})

	publishes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cellmon",
		Name:      "publishes_total",
		Help:      "Payload broadcasts to observers.",
	})

	registryFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cellmon",
		Name:      "state_flushes_total",
		Help:      "Periodic state persistence runs by outcome.",
	}, []string{"outcome"})
)
