package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

// readinessState tracks the dependencies /ready reports on.
type readinessState struct {
	mu                sync.RWMutex
	orchestratorReady bool
	mqttConnected     bool
	mqttOptional      bool
	storeConnected    bool
	storeOptional     bool
}

var readiness = &readinessState{}

// SetOrchestratorReady marks the runner as wired and started.
func SetOrchestratorReady(ready bool) {
	readiness.mu.Lock()
	readiness.orchestratorReady = ready
	readiness.mu.Unlock()
}

// SetMQTTConnected records the broker connection state.
func SetMQTTConnected(connected bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mu.Unlock()
}

// SetMQTTOptional lets /ready pass without a broker (local play).
func SetMQTTOptional(optional bool) {
	readiness.mu.Lock()
	readiness.mqttOptional = optional
	readiness.mu.Unlock()
}

// SetStoreConnected records the event store connection state.
func SetStoreConnected(connected bool) {
	readiness.mu.Lock()
	readiness.storeConnected = connected
	readiness.mu.Unlock()
}

// SetStoreOptional lets /ready pass without a persistent event store.
func SetStoreOptional(optional bool) {
	readiness.mu.Lock()
	readiness.storeOptional = optional
	readiness.mu.Unlock()
}

type CheckResult struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckResult `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	orchestratorReady := readiness.orchestratorReady
	mqttConnected := readiness.mqttConnected
	mqttOptional := readiness.mqttOptional
	storeConnected := readiness.storeConnected
	storeOptional := readiness.storeOptional
	readiness.mu.RUnlock()

	resp := ReadinessResponse{Ready: true, Checks: make(map[string]CheckResult, 3)}
	var notReady []string

	if orchestratorReady {
		resp.Checks["orchestrator"] = CheckResult{Status: "ok"}
	} else {
		resp.Checks["orchestrator"] = CheckResult{Status: "not_ready"}
		notReady = append(notReady, "orchestrator not ready")
	}

	resp.Checks["mqtt"] = dependencyCheck(mqttConnected, mqttOptional)
	if !mqttConnected && !mqttOptional {
		notReady = append(notReady, "mqtt disconnected")
	}

	resp.Checks["store"] = dependencyCheck(storeConnected, storeOptional)
	if !storeConnected && !storeOptional {
		notReady = append(notReady, "event store disconnected")
	}

	w.Header().Set("Content-Type", "application/json")
	if len(notReady) > 0 {
		resp.Ready = false
		resp.NotReadyMsg = strings.Join(notReady, "; ")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func dependencyCheck(connected, optional bool) CheckResult {
	switch {
	case connected:
		return CheckResult{Status: "ok"}
	case optional:
		return CheckResult{Status: "unavailable_optional"}
	default:
		return CheckResult{Status: "disconnected"}
	}
}
