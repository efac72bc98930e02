package mqtt

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RegistrationPayload represents a v1 minigame host registration message.
// Hosts republish it every heartbeat interval.
type RegistrationPayload struct {
	Version   int                    `json:"version"`
	Host      HostInfo               `json:"host"`
	MiniGames []MiniGameRegistration `json:"minigames"`
}

// HostInfo contains metadata about the process running the minigames.
type HostInfo struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Build        string `json:"build"`
	UptimeMS     int64  `json:"uptime_ms"`
	HeartbeatSec int    `json:"heartbeat_sec"`
}

// MiniGameRegistration describes a single minigame provided by the host.
type MiniGameRegistration struct {
	ID     string         `json:"id"`
	Kind   string         `json:"kind"`
	Topics MiniGameTopics `json:"topics"`
}

// MiniGameTopics defines MQTT topics for minigame communication.
// Command is where the engine publishes enter requests; Result is where the
// host publishes the outcome.
type MiniGameTopics struct {
	Command string `json:"command"`
	Result  string `json:"result"`
}

// ParseRegistration parses a registration payload from JSON bytes.
func ParseRegistration(data []byte) (*RegistrationPayload, error) {
	var payload RegistrationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid registration JSON: %w", err)
	}

	if payload.Version != 1 {
		return nil, fmt.Errorf("unsupported registration version: %d", payload.Version)
	}

	if payload.Host.ID == "" {
		return nil, fmt.Errorf("host.id is required")
	}

	return &payload, nil
}

// MiniGameSpec is a minigame the story expects some host to provide.
type MiniGameSpec struct {
	Kind     string
	Required bool
}

// ValidationResult contains validation outcome.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateRegistration validates a registration payload against minigame specs.
// Required minigames must be present; unknown ones only warn.
func ValidateRegistration(payload *RegistrationPayload, specs map[string]MiniGameSpec) *ValidationResult {
	result := &ValidationResult{Valid: true}

	registered := make(map[string]*MiniGameRegistration)
	for i := range payload.MiniGames {
		game := &payload.MiniGames[i]
		if game.ID == "" {
			result.Errors = append(result.Errors, "minigame with empty id")
			result.Valid = false
			continue
		}
		registered[game.ID] = game
	}

	for _, id := range sortedSpecIDs(specs) {
		spec := specs[id]
		reg, found := registered[id]
		if !found {
			if spec.Required {
				result.Errors = append(result.Errors, fmt.Sprintf("required minigame missing: %s", id))
				result.Valid = false
			}
			continue
		}

		if spec.Kind != "" && reg.Kind != spec.Kind {
			result.Errors = append(result.Errors, fmt.Sprintf("minigame %s: kind mismatch (expected %s, got %s)", id, spec.Kind, reg.Kind))
			result.Valid = false
		}
	}

	for id := range registered {
		if _, ok := specs[id]; !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unrecognized minigame: %s", id))
		}
	}
	sort.Strings(result.Warnings)

	return result
}

func sortedSpecIDs(specs map[string]MiniGameSpec) []string {
	ids := make([]string, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
