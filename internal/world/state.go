// Package world tracks the game state shared between the narrative engine,
// the minigames and the outcome policy: per-character danger levels, unlocked
// endings and the temp flags that carry resume information across a minigame.
package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AaronLay10/SentientNarrative/internal/events"
)

// ErrUnknownCharacter is returned when a name is not in the roster.
var ErrUnknownCharacter = errors.New("world: unknown character")

// State is the process-wide world state. Construct one per play session and
// pass it to every collaborator. All methods are safe for concurrent use.
type State struct {
	mu          sync.RWMutex
	roster      []string
	danger      map[string]int
	unlocked    map[string]struct{}
	unlockOrder []string
	flags       map[string]string
}

// New creates a world state with the given character roster at danger 0.
func New(roster []string) *State {
	s := &State{
		roster:   make([]string, 0, len(roster)),
		danger:   make(map[string]int, len(roster)),
		unlocked: make(map[string]struct{}),
		flags:    make(map[string]string),
	}
	for _, name := range roster {
		if _, dup := s.danger[name]; dup {
			continue
		}
		s.roster = append(s.roster, name)
		s.danger[name] = 0
	}
	return s
}

// IncreaseDanger adds amount to a character's danger level.
// Negative amounts are applied as given; callers clamp (see ClampedDelta).
// Unknown names are a logged no-op.
func (s *State) IncreaseDanger(name string, amount int) error {
	s.mu.Lock()
	level, ok := s.danger[name]
	if !ok {
		s.mu.Unlock()
		events.Emit("warning", "danger.unknown_character", "character not in roster", map[string]interface{}{
			"name":   name,
			"amount": amount,
		})
		return fmt.Errorf("%w: %s", ErrUnknownCharacter, name)
	}
	level += amount
	s.danger[name] = level
	s.mu.Unlock()

	events.Emit("info", "danger.increased", "", map[string]interface{}{
		"name":   name,
		"amount": amount,
		"level":  level,
	})
	return nil
}

// ClampedDelta returns the delta that moves a character by amount without
// dropping below zero. Unknown names yield 0.
func (s *State) ClampedDelta(name string, amount int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	level, ok := s.danger[name]
	if !ok {
		return 0
	}
	if level+amount < 0 {
		return -level
	}
	return amount
}

// DangerLevel returns a character's current danger level.
func (s *State) DangerLevel(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	level, ok := s.danger[name]
	return level, ok
}

// Characters returns a copy of all danger levels.
func (s *State) Characters() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.danger))
	for k, v := range s.danger {
		out[k] = v
	}
	return out
}

// Roster returns the character names in roster order.
func (s *State) Roster() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.roster...)
}

// CountAtLeast returns how many characters have a danger level >= threshold.
func (s *State) CountAtLeast(threshold int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, level := range s.danger {
		if level >= threshold {
			count++
		}
	}
	return count
}

// UnlockEnding records an ending as unlocked. It returns true the first time
// an id is added; repeated calls leave the set unchanged.
func (s *State) UnlockEnding(id string) bool {
	s.mu.Lock()
	if _, ok := s.unlocked[id]; ok {
		s.mu.Unlock()
		return false
	}
	s.unlocked[id] = struct{}{}
	s.unlockOrder = append(s.unlockOrder, id)
	s.mu.Unlock()

	events.Emit("info", "ending.unlocked", "", map[string]interface{}{"ending_id": id})
	return true
}

// HasUnlockedEnding reports whether id has been unlocked.
func (s *State) HasUnlockedEnding(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.unlocked[id]
	return ok
}

// UnlockedEndings returns unlocked ending ids in unlock order.
func (s *State) UnlockedEndings() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.unlockOrder...)
}

// SetFlag stores a temp flag, overwriting any previous value.
func (s *State) SetFlag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = value
}

// GetFlag returns a temp flag, or "" when it is not set.
func (s *State) GetFlag(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[key]
}

// ClearFlags removes all temp flags.
func (s *State) ClearFlags() {
	s.mu.Lock()
	n := len(s.flags)
	s.flags = make(map[string]string)
	s.mu.Unlock()

	if n > 0 {
		events.Emit("info", "flags.cleared", "", map[string]interface{}{"count": n})
	}
}

// Flags returns a copy of the temp flags.
func (s *State) Flags() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.flags))
	for k, v := range s.flags {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
