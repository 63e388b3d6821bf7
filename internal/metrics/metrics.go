// Package metrics exports Prometheus metrics for streams, PTZ commands and
// the camera directory. Values are fed from the event bus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "camwall"

var (
	streamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "active",
		Help:      "Streams requested and not yet finished",
	})

	streamsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "started_total",
		Help:      "Streams that delivered a first frame",
	}, []string{"transport"})

	streamsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "finished_total",
		Help:      "Finished streams by reason",
	}, []string{"transport", "reason"})

	streamFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_total",
		Help:      "Frames received by finished streams",
	}, []string{"transport"})

	firstFrameSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "first_frame_seconds",
		Help:      "Time from request to first frame",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"transport"})

	ptzCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ptz",
		Name:      "commands_total",
		Help:      "PTZ commands sent, by command and result",
	}, []string{"command", "result"})

	focusChanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ptz",
		Name:      "focus_changes_total",
		Help:      "Times PTZ control moved to another camera",
	})

	directoryCameras = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "directory",
		Name:      "cameras",
		Help:      "Cameras in the loaded directory",
	})

	// Local totals for the API, keyed by transport.
	summary   = make(map[string]*TransportSummary)
	summaryMu sync.RWMutex
)

// TransportSummary holds running totals for one transport.
type TransportSummary struct {
	Active   int            `json:"active"`
	Started  uint64         `json:"started"`
	Finished uint64         `json:"finished"`
	Frames   uint64         `json:"frames"`
	Reasons  map[string]int `json:"reasons"`
}

// Handler serves every registered metric.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StreamRequested records a stream entering Connecting.
func StreamRequested(transport string) {
	streamsActive.Inc()
	updateSummary(transport, func(s *TransportSummary) { s.Active++ })
}

// StreamStarted records a first frame after wait.
func StreamStarted(transport string, wait time.Duration) {
	streamsStarted.WithLabelValues(transport).Inc()
	firstFrameSeconds.WithLabelValues(transport).Observe(wait.Seconds())
	updateSummary(transport, func(s *TransportSummary) { s.Started++ })
}

// StreamFinished records a stream reaching Finished.
func StreamFinished(transport, reason string, frames uint64) {
	streamsActive.Dec()
	streamsFinished.WithLabelValues(transport, reason).Inc()
	streamFrames.WithLabelValues(transport).Add(float64(frames))
	updateSummary(transport, func(s *TransportSummary) {
		s.Active--
		s.Finished++
		s.Frames += frames
		s.Reasons[reason]++
	})
}

// PTZCommand records one controller command.
func PTZCommand(command string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	ptzCommands.WithLabelValues(command, result).Inc()
}

// FocusChanged records a focus move.
func FocusChanged() {
	focusChanges.Inc()
}

// DirectoryLoaded records the camera count after a reload.
func DirectoryLoaded(cameras int) {
	directoryCameras.Set(float64(cameras))
}

// Summary returns a copy of the per-transport totals.
func Summary() map[string]TransportSummary {
	summaryMu.RLock()
	defer summaryMu.RUnlock()
	out := make(map[string]TransportSummary, len(summary))
	for name, s := range summary {
		dup := *s
		dup.Reasons = make(map[string]int, len(s.Reasons))
		for k, v := range s.Reasons {
			dup.Reasons[k] = v
		}
		out[name] = dup
	}
	return out
}

func updateSummary(transport string, update func(*TransportSummary)) {
	summaryMu.Lock()
	defer summaryMu.Unlock()
	s, ok := summary[transport]
	if !ok {
		s = &TransportSummary{Reasons: make(map[string]int)}
		summary[transport] = s
	}
	update(s)
}
