package world

// Snapshot is a point-in-time copy of the world state.
type Snapshot struct {
	Danger   map[string]int    `json:"danger"`
	Unlocked []string          `json:"unlocked_endings"`
	Flags    map[string]string `json:"flags,omitempty"`
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Danger:   make(map[string]int, len(s.danger)),
		Unlocked: append([]string{}, s.unlockOrder...),
		Flags:    make(map[string]string, len(s.flags)),
	}
	for k, v := range s.danger {
		snap.Danger[k] = v
	}
	for k, v := range s.flags {
		snap.Flags[k] = v
	}
	return snap
}

// Restore replaces danger levels, unlocked endings and flags from a snapshot.
// Danger entries for names outside the roster are ignored and roster members
// missing from the snapshot reset to 0. No events are emitted.
func (s *State) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.roster {
		s.danger[name] = snap.Danger[name]
	}

	s.unlocked = make(map[string]struct{}, len(snap.Unlocked))
	s.unlockOrder = s.unlockOrder[:0]
	for _, id := range snap.Unlocked {
		if _, ok := s.unlocked[id]; ok {
			continue
		}
		s.unlocked[id] = struct{}{}
		s.unlockOrder = append(s.unlockOrder, id)
	}

	s.flags = make(map[string]string, len(snap.Flags))
	for k, v := range snap.Flags {
		s.flags[k] = v
	}
}

// DangerReport lists danger levels in name order.
func (snap Snapshot) DangerReport() []CharacterDanger {
	out := make([]CharacterDanger, 0, len(snap.Danger))
	for _, name := range sortedKeys(snap.Danger) {
		out = append(out, CharacterDanger{Name: name, Level: snap.Danger[name]})
	}
	return out
}

// CharacterDanger is one row of a danger report.
type CharacterDanger struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}
