package mqtt

import (
	"testing"
	"time"

	"github.com/AaronLay10/SentientNarrative/internal/events"
)

func kitchenPayload() *RegistrationPayload {
	return &RegistrationPayload{
		Version: 1,
		Host:    HostInfo{ID: "kitchen-pc", HeartbeatSec: 5},
		MiniGames: []MiniGameRegistration{
			{
				ID:   "cooking",
				Kind: "drag_drop",
				Topics: MiniGameTopics{
					Command: "hosts/kitchen-pc/cooking/enter",
					Result:  "hosts/kitchen-pc/cooking/result",
				},
			},
		},
	}
}

func TestMonitor_HandleRegistration_SubscribesResults(t *testing.T) {
	events.Clear()
	specs := map[string]MiniGameSpec{"cooking": {Kind: "drag_drop", Required: true}}
	mock := NewMockMQTTClient()
	registry := NewMiniGameRegistry()
	subscriber := NewResultSubscriber(mock, registry, func(string, []byte) {})
	monitor := NewMonitor(specs, registry, subscriber, 2.0)

	result := monitor.HandleRegistration(kitchenPayload())
	if !result.Valid {
		t.Fatalf("registration should be valid: %v", result.Errors)
	}

	if registry.CommandTopic("cooking") != "hosts/kitchen-pc/cooking/enter" {
		t.Error("expected cooking registered with its command topic")
	}
	if !subscriber.IsSubscribed("hosts/kitchen-pc/cooking/result") {
		t.Error("expected subscription after registration")
	}
	if len(events.Find("minigame.registered")) != 1 {
		t.Error("expected minigame.registered event")
	}

	// Re-registration is a heartbeat and does not re-announce.
	monitor.HandleRegistration(kitchenPayload())
	if len(events.Find("minigame.registered")) != 1 {
		t.Error("heartbeat must not re-announce")
	}
}

func TestMonitor_HandleRegistration_Invalid(t *testing.T) {
	events.Clear()
	specs := map[string]MiniGameSpec{"jump_scare": {Required: true}}
	monitor := NewMonitor(specs, nil, nil, 0)

	result := monitor.HandleRegistration(kitchenPayload())
	if result.Valid {
		t.Fatal("expected invalid registration")
	}
	if monitor.GetHostState("kitchen-pc") != nil {
		t.Error("invalid host must not be tracked")
	}
	if monitor.Registry().Exists("cooking") {
		t.Error("invalid registration must not register games")
	}
	if len(events.Find("minigame.error")) != 1 {
		t.Error("expected minigame.error event")
	}
}

func TestMonitor_HandleMessage_BadJSON(t *testing.T) {
	monitor := NewMonitor(nil, nil, nil, 0)
	if result := monitor.HandleMessage([]byte("{")); result.Valid {
		t.Error("expected invalid result for bad JSON")
	}
}

func TestMonitor_HostLost(t *testing.T) {
	events.Clear()
	monitor := NewMonitor(nil, nil, nil, 2.0)
	start := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	now := start
	monitor.now = func() time.Time { return now }

	monitor.HandleRegistration(kitchenPayload())

	now = start.Add(9 * time.Second)
	monitor.checkHealth()
	if hosts := monitor.ConnectedHosts(); len(hosts) != 1 {
		t.Fatalf("host should still be connected, got %v", hosts)
	}

	now = start.Add(11 * time.Second)
	monitor.checkHealth()
	if hosts := monitor.ConnectedHosts(); len(hosts) != 0 {
		t.Errorf("expected host lost, got %v", hosts)
	}
	if len(events.Find("minigame.host_lost")) != 1 {
		t.Error("expected minigame.host_lost event")
	}

	// Reconnect announces again.
	monitor.HandleRegistration(kitchenPayload())
	registered := events.Find("minigame.registered")
	if len(registered) != 2 || registered[1].Fields["reconnect"] != true {
		t.Errorf("expected reconnect announcement, got %v", registered)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	monitor := NewMonitor(nil, nil, nil, 2.0)
	monitor.Start(10 * time.Millisecond)
	time.Sleep(25 * time.Millisecond)
	monitor.Stop()
}
