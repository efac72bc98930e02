package orchestrator

import (
	"github.com/AaronLay10/SentientNarrative/internal/events"
	"github.com/AaronLay10/SentientNarrative/internal/storage"
	"github.com/AaronLay10/SentientNarrative/internal/world"
)

// DefaultRestoreLimit is the default number of events to load for restore.
const DefaultRestoreLimit = 1000

// RestoredState is the world state reconstructed from the event log.
type RestoredState struct {
	Danger   map[string]int
	Unlocked []string
	// Chapter is the graph id of the last chapter started.
	Chapter string
	// Pending is set when the log ends with a minigame still running.
	Pending *world.Handoff
}

// RestoreFromEvents loads events and reconstructs the world state.
// Returns nil if no events were found or if q is nil.
func RestoreFromEvents(q storage.EventQuerier, limit int) (*RestoredState, int, error) {
	if q == nil {
		return nil, 0, nil
	}

	if limit <= 0 {
		limit = DefaultRestoreLimit
	}

	rows, err := q.Query(limit)
	if err != nil {
		return nil, 0, err
	}

	if len(rows) == 0 {
		return nil, 0, nil
	}

	// Reverse to chronological order (Query returns DESC)
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	state := &RestoredState{
		Danger: make(map[string]int),
	}
	unlocked := make(map[string]bool)

	for _, row := range rows {
		switch row.Event {
		case "danger.increased":
			// level is absolute, so a truncated log still converges.
			if level, ok := row.Int("level"); ok {
				state.Danger[row.String("name")] = level
			}

		case "ending.unlocked":
			id := row.String("ending_id")
			if id != "" && !unlocked[id] {
				unlocked[id] = true
				state.Unlocked = append(state.Unlocked, id)
			}

		case "chapter.started":
			state.Chapter = row.String("graph_id")

		case "minigame.entered":
			state.Pending = &world.Handoff{
				GraphID:          row.String("graph_id"),
				CheckpointNodeID: row.String("checkpoint_node_id"),
				ContinueNodeID:   row.String("continue_node_id"),
			}

		case "minigame.finished", "flags.cleared":
			state.Pending = nil

		case "story.reset":
			state.Danger = make(map[string]int)
			state.Chapter = ""
			state.Pending = nil
		}
	}

	return state, len(rows), nil
}

// Snapshot converts the restored state into a world snapshot.
func (s *RestoredState) Snapshot() world.Snapshot {
	snap := world.Snapshot{
		Danger:   make(map[string]int, len(s.Danger)),
		Unlocked: append([]string{}, s.Unlocked...),
		Flags:    make(map[string]string),
	}
	for k, v := range s.Danger {
		snap.Danger[k] = v
	}
	if s.Pending != nil {
		snap.Flags[world.FlagReturnGraphID] = s.Pending.GraphID
		snap.Flags[world.FlagReturnNodeID] = s.Pending.CheckpointNodeID
		snap.Flags[world.FlagReturnNextNodeID] = s.Pending.ContinueNodeID
	}
	return snap
}

// ApplyRestoredState applies restored state to the world.
// This does NOT re-emit events.
func ApplyRestoredState(w *world.State, state *RestoredState) {
	if w == nil || state == nil {
		return
	}
	w.Restore(state.Snapshot())
}

// EmitStartupRestore emits the system.startup_restore event.
func EmitStartupRestore(restored int, storyID string, state *RestoredState) {
	fields := map[string]interface{}{
		"restored": restored,
		"story_id": storyID,
	}
	if state != nil {
		fields["chapter"] = state.Chapter
		fields["unlocked"] = len(state.Unlocked)
		fields["pending_minigame"] = state.Pending != nil
	}
	events.Emit("info", "system.startup_restore", "", fields)
}
