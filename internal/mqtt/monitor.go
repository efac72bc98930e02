package mqtt

import (
	"sort"
	"sync"
	"time"

	"github.com/AaronLay10/SentientNarrative/internal/events"
)

// HostState tracks a registered minigame host's health.
type HostState struct {
	HostID       string
	LastSeen     time.Time
	HeartbeatSec int
	MiniGames    []string
	Connected    bool
}

// Monitor tracks minigame host registration and health.
type Monitor struct {
	mu         sync.RWMutex
	hosts      map[string]*HostState
	specs      map[string]MiniGameSpec
	registry   *MiniGameRegistry
	subscriber *ResultSubscriber
	tolerance  float64 // multiplier for heartbeat interval (e.g., 2.0 = 2x heartbeat)
	now        func() time.Time
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewMonitor creates a new host monitor. subscriber may be nil.
// tolerance is the multiplier for heartbeat interval before considering a host lost.
func NewMonitor(specs map[string]MiniGameSpec, registry *MiniGameRegistry, subscriber *ResultSubscriber, tolerance float64) *Monitor {
	if tolerance <= 1.0 {
		tolerance = 2.0 // default: miss 1 heartbeat
	}
	if registry == nil {
		registry = NewMiniGameRegistry()
	}
	return &Monitor{
		hosts:      make(map[string]*HostState),
		specs:      specs,
		registry:   registry,
		subscriber: subscriber,
		tolerance:  tolerance,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Registry returns the minigame registry the monitor fills.
func (m *Monitor) Registry() *MiniGameRegistry {
	return m.registry
}

// HandleMessage parses and processes a raw registration message.
func (m *Monitor) HandleMessage(data []byte) *ValidationResult {
	payload, err := ParseRegistration(data)
	if err != nil {
		events.Emit("error", "minigame.error", "invalid registration", map[string]interface{}{
			"error": err.Error(),
		})
		return &ValidationResult{Errors: []string{err.Error()}}
	}
	return m.HandleRegistration(payload)
}

// HandleRegistration validates a registration, records the host and
// registers its minigames. Repeated registrations act as heartbeats.
func (m *Monitor) HandleRegistration(payload *RegistrationPayload) *ValidationResult {
	result := ValidateRegistration(payload, m.specs)
	hostID := payload.Host.ID

	if !result.Valid {
		events.Emit("error", "minigame.error", "registration validation failed", map[string]interface{}{
			"host_id": hostID,
			"errors":  result.Errors,
		})
		return result
	}

	var gameIDs []string
	for _, game := range payload.MiniGames {
		gameIDs = append(gameIDs, game.ID)
	}

	m.mu.Lock()
	existing, known := m.hosts[hostID]
	announce := !known || !existing.Connected
	m.hosts[hostID] = &HostState{
		HostID:       hostID,
		LastSeen:     m.now(),
		HeartbeatSec: payload.Host.HeartbeatSec,
		MiniGames:    gameIDs,
		Connected:    true,
	}
	m.mu.Unlock()

	m.registry.RegisterFromPayload(payload)

	if m.subscriber != nil {
		for _, id := range gameIDs {
			if game := m.registry.Get(id); game != nil {
				if err := m.subscriber.SubscribeGame(game); err != nil {
					events.Emit("error", "minigame.error", "failed to subscribe to minigame results", map[string]interface{}{
						"game_id": id,
						"error":   err.Error(),
					})
				}
			}
		}
	}

	if announce {
		for _, game := range payload.MiniGames {
			events.Emit("info", "minigame.registered", "", map[string]interface{}{
				"host_id":   hostID,
				"game_id":   game.ID,
				"kind":      game.Kind,
				"reconnect": known,
			})
		}
	}

	return result
}

// Start begins the background health check loop.
func (m *Monitor) Start(checkInterval time.Duration) {
	m.wg.Add(1)
	go m.healthCheckLoop(checkInterval)
}

// Stop stops the background health check loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) healthCheckLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

func (m *Monitor) checkHealth() {
	type lost struct {
		host     string
		games    []string
		lastSeen time.Time
		timeout  time.Duration
	}
	var lostHosts []lost

	m.mu.Lock()
	now := m.now()
	for hostID, state := range m.hosts {
		if !state.Connected || state.HeartbeatSec <= 0 {
			continue
		}

		timeout := time.Duration(float64(state.HeartbeatSec)*m.tolerance) * time.Second
		if now.Sub(state.LastSeen) > timeout {
			state.Connected = false
			lostHosts = append(lostHosts, lost{hostID, state.MiniGames, state.LastSeen, timeout})
		}
	}
	m.mu.Unlock()

	for _, l := range lostHosts {
		events.Emit("warning", "minigame.host_lost", "heartbeat timeout", map[string]interface{}{
			"host_id":     l.host,
			"games":       l.games,
			"last_seen":   l.lastSeen.Format(time.RFC3339),
			"timeout_sec": l.timeout.Seconds(),
		})
	}
}

// GetHostState returns a copy of a host's state, or nil.
func (m *Monitor) GetHostState(hostID string) *HostState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.hosts[hostID]; ok {
		cpy := *state
		cpy.MiniGames = append([]string{}, state.MiniGames...)
		return &cpy
	}
	return nil
}

// ConnectedHosts returns the ids of currently connected hosts, sorted.
func (m *Monitor) ConnectedHosts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, state := range m.hosts {
		if state.Connected {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
