package world

import "github.com/AaronLay10/SentientNarrative/internal/events"

// Temp flag keys written when a minigame takes control of the scene.
const (
	FlagReturnGraphID    = "return_graph_id"
	FlagReturnNodeID     = "return_node_id"
	FlagReturnNextNodeID = "return_next_node_id"
)

// Handoff is the resume information parked in the temp flags while a
// minigame runs. It is enough to resume the walk from a fresh runner.
type Handoff struct {
	GraphID          string `json:"graph_id"`
	CheckpointNodeID string `json:"checkpoint_node_id"`
	ContinueNodeID   string `json:"continue_node_id"`
}

// Fields returns the handoff as event fields.
func (h Handoff) Fields() map[string]interface{} {
	return map[string]interface{}{
		"graph_id":           h.GraphID,
		"checkpoint_node_id": h.CheckpointNodeID,
		"continue_node_id":   h.ContinueNodeID,
	}
}

// ParkHandoff writes the handoff flags.
func (s *State) ParkHandoff(h Handoff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[FlagReturnGraphID] = h.GraphID
	s.flags[FlagReturnNodeID] = h.CheckpointNodeID
	s.flags[FlagReturnNextNodeID] = h.ContinueNodeID
}

// Handoff reads the parked handoff. ok is false when no graph id is parked.
func (s *State) Handoff() (Handoff, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := Handoff{
		GraphID:          s.flags[FlagReturnGraphID],
		CheckpointNodeID: s.flags[FlagReturnNodeID],
		ContinueNodeID:   s.flags[FlagReturnNextNodeID],
	}
	return h, h.GraphID != ""
}

// TakeHandoff reads the parked handoff and clears the temp flags.
func (s *State) TakeHandoff() (Handoff, bool) {
	s.mu.Lock()
	h := Handoff{
		GraphID:          s.flags[FlagReturnGraphID],
		CheckpointNodeID: s.flags[FlagReturnNodeID],
		ContinueNodeID:   s.flags[FlagReturnNextNodeID],
	}
	n := len(s.flags)
	s.flags = make(map[string]string)
	s.mu.Unlock()

	if n > 0 {
		events.Emit("info", "flags.cleared", "", map[string]interface{}{"count": n})
	}
	return h, h.GraphID != ""
}
