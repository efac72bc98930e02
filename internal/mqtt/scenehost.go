package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AaronLay10/SentientNarrative/internal/events"
	"github.com/AaronLay10/SentientNarrative/internal/world"
)

// ErrUnexpectedResult is returned when a result arrives for a minigame
// other than the one that was entered.
var ErrUnexpectedResult = errors.New("mqtt: result for inactive minigame")

// Resumer continues a walk once a minigame reports back.
type Resumer interface {
	OnMiniGameFinished(success bool) error
}

// EnterCommand is published to a minigame's command topic.
type EnterCommand struct {
	Action string `json:"action"`
	GameID string `json:"game_id"`
	TS     string `json:"ts"`
}

// Result is a minigame's report. Danger deltas are applied before the walk resumes.
type Result struct {
	Success bool          `json:"success"`
	Danger  []DangerDelta `json:"danger,omitempty"`
}

// DangerDelta changes one character's danger level.
type DangerDelta struct {
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

// ParseResult decodes a result payload.
func ParseResult(data []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("invalid result JSON: %w", err)
	}
	return &res, nil
}

// SceneHost hands control to minigames over MQTT and feeds their results
// back to the runner.
type SceneHost struct {
	conn     Publisher
	registry *MiniGameRegistry
	world    *world.State

	mu     sync.Mutex
	runner Resumer
	active string

	// finishMu serializes results.
	finishMu sync.Mutex
}

// NewSceneHost creates a scene host. Attach must be called before results arrive.
func NewSceneHost(conn Publisher, registry *MiniGameRegistry, w *world.State) *SceneHost {
	if registry == nil {
		registry = NewMiniGameRegistry()
	}
	return &SceneHost{
		conn:     conn,
		registry: registry,
		world:    w,
	}
}

// Attach sets the runner resumed by results.
func (h *SceneHost) Attach(r Resumer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runner = r
}

// Active returns the id of the minigame currently in control, if any.
func (h *SceneHost) Active() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// EnterMiniGame publishes an enter command for gameID. A failed publish is
// logged; the walk stays parked until a result is delivered another way.
func (h *SceneHost) EnterMiniGame(gameID string) {
	h.mu.Lock()
	h.active = gameID
	h.mu.Unlock()

	topic := h.registry.CommandTopic(gameID)
	payload, err := json.Marshal(EnterCommand{
		Action: "enter",
		GameID: gameID,
		TS:     time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		h.emitError(gameID, topic, err)
		return
	}

	if h.conn == nil {
		h.emitError(gameID, topic, errors.New("mqtt not connected"))
		return
	}
	if err := h.conn.Publish(topic, payload); err != nil {
		h.emitError(gameID, topic, err)
	}
}

// HandleResult parses a raw result payload and finishes the minigame.
func (h *SceneHost) HandleResult(gameID string, payload []byte) error {
	res, err := ParseResult(payload)
	if err != nil {
		h.emitError(gameID, "", err)
		return err
	}
	return h.Finish(gameID, *res)
}

// Finish applies the result's danger deltas, clamped at zero, and resumes
// the runner. An empty gameID matches whatever minigame is active.
//
// A result is only accepted while a handoff is parked in the world state,
// so a redelivered result is rejected before its deltas are applied.
func (h *SceneHost) Finish(gameID string, res Result) error {
	h.finishMu.Lock()
	defer h.finishMu.Unlock()

	h.mu.Lock()
	active := h.active
	runner := h.runner
	h.mu.Unlock()

	if active != "" && gameID != "" && gameID != active {
		events.Emit("warning", "minigame.error", "result for inactive minigame", map[string]interface{}{
			"game_id":   gameID,
			"active_id": active,
		})
		return ErrUnexpectedResult
	}
	if !h.awaitingResult(active) {
		events.Emit("warning", "minigame.error", "result with no minigame in progress", map[string]interface{}{
			"game_id": gameID,
		})
		return ErrUnexpectedResult
	}
	if runner == nil {
		return errors.New("scene host has no runner attached")
	}

	h.mu.Lock()
	h.active = ""
	h.mu.Unlock()

	if h.world != nil {
		for _, d := range res.Danger {
			amount := h.world.ClampedDelta(d.Name, d.Amount)
			if amount == 0 {
				if _, known := h.world.DangerLevel(d.Name); known {
					continue
				}
			}
			// Unknown names are logged by the world state.
			_ = h.world.IncreaseDanger(d.Name, amount)
		}
	}

	return runner.OnMiniGameFinished(res.Success)
}

// awaitingResult reports whether a minigame result can be applied. The
// parked handoff is authoritative; it also covers a handoff restored from
// the event log after a restart, when no game has been entered in this process.
func (h *SceneHost) awaitingResult(active string) bool {
	if h.world == nil {
		return active != ""
	}
	_, parked := h.world.Handoff()
	return parked
}

func (h *SceneHost) emitError(gameID, topic string, err error) {
	events.Emit("error", "minigame.error", err.Error(), map[string]interface{}{
		"game_id": gameID,
		"topic":   topic,
	})
}

// AudioPublisher is an AudioCue that publishes track changes over MQTT.
type AudioPublisher struct {
	conn  Publisher
	topic string
}

// NewAudioPublisher creates an audio publisher. An empty topic uses AudioTopic.
func NewAudioPublisher(conn Publisher, topic string) *AudioPublisher {
	if topic == "" {
		topic = AudioTopic
	}
	return &AudioPublisher{conn: conn, topic: topic}
}

// PlayTrack publishes {"track": index}. Fire-and-forget: failures are logged.
func (a *AudioPublisher) PlayTrack(index int) {
	payload, _ := json.Marshal(map[string]int{"track": index})
	if err := a.conn.Publish(a.topic, payload); err != nil {
		events.Emit("error", "system.error", "audio cue publish failed", map[string]interface{}{
			"topic": a.topic,
			"track": index,
			"error": err.Error(),
		})
	}
}
