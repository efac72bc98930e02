package api

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/AaronLay10/SentientNarrative/internal/events"
	"github.com/AaronLay10/SentientNarrative/internal/version"
)

var metricsState = &MetricsState{startTime: time.Now()}

// MetricsState holds process metrics for the /metrics endpoint.
type MetricsState struct {
	mu        sync.RWMutex
	startTime time.Time
	storyID   string
}

// InitMetrics resets the uptime clock and sets the story label.
func InitMetrics(storyID string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
	metricsState.storyID = storyID
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metricsState.mu.RLock()
	startTime := metricsState.startTime
	storyID := metricsState.storyID
	metricsState.mu.RUnlock()

	readiness.mu.RLock()
	mqttConnected := readiness.mqttConnected
	storeConnected := readiness.storeConnected
	readiness.mu.RUnlock()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	labels := fmt.Sprintf(`story="%s",instance="%s",version="%s"`, storyID, hostname, version.Version)
	writeMetric := func(name, mtype, help string, value interface{}) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	writeMetric("sentient_uptime_seconds", "gauge",
		"Number of seconds since the orchestrator started", time.Since(startTime).Seconds())
	writeMetric("sentient_events_total", "counter",
		"Total number of events emitted since startup", events.TotalCount())
	writeMetric("sentient_mqtt_connected", "gauge",
		"Whether MQTT broker is connected (1) or not (0)", boolGauge(mqttConnected))
	writeMetric("sentient_store_connected", "gauge",
		"Whether the event store is connected (1) or not (0)", boolGauge(storeConnected))
	writeMetric("sentient_ws_clients", "gauge",
		"Number of active WebSocket client connections", events.SubscriberCount())

	if s.deps.Runner != nil {
		status := s.deps.Runner.Status()
		writeMetric("sentient_runner_busy", "gauge",
			"Whether the runner is processing a node (1) or idle (0)", boolGauge(status.Busy))
		writeMetric("sentient_runner_parked", "gauge",
			"Whether the walk is handed off to a minigame (1) or not (0)", boolGauge(status.Parked()))
	}

	if s.deps.World != nil {
		snap := s.deps.World.Snapshot()
		writeMetric("sentient_endings_unlocked", "gauge",
			"Number of endings unlocked in this session", len(snap.Unlocked))

		names := make([]string, 0, len(snap.Danger))
		for name := range snap.Danger {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(w, "# HELP sentient_character_danger Current danger level per character\n")
		fmt.Fprintf(w, "# TYPE sentient_character_danger gauge\n")
		for _, name := range names {
			fmt.Fprintf(w, "sentient_character_danger{%s,character=\"%s\"} %d\n", labels, name, snap.Danger[name])
		}
	}
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
