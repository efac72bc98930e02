package mqtt

import (
	"sort"
	"strings"
	"sync"
)

// Well-known topics.
const (
	RegistrationTopic = "sentient/minigames/register"
	ResultWildcard    = "sentient/minigames/+/result"
	AudioTopic        = "sentient/audio/commands"
	topicPrefix       = "sentient/minigames/"
)

// DefaultCommandTopic is where enter requests go for unregistered minigames.
func DefaultCommandTopic(gameID string) string {
	return topicPrefix + gameID + "/enter"
}

// DefaultResultTopic is where unregistered minigames report their result.
func DefaultResultTopic(gameID string) string {
	return topicPrefix + gameID + "/result"
}

// GameIDFromTopic extracts the game id from a default result topic.
func GameIDFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/result")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// RegisteredMiniGame holds runtime information about a registered minigame.
type RegisteredMiniGame struct {
	ID           string
	HostID       string
	Kind         string
	CommandTopic string
	ResultTopic  string
}

// MiniGameRegistry maps minigame ids to the host and topics serving them.
type MiniGameRegistry struct {
	mu    sync.RWMutex
	games map[string]*RegisteredMiniGame
}

// NewMiniGameRegistry creates a new empty registry.
func NewMiniGameRegistry() *MiniGameRegistry {
	return &MiniGameRegistry{
		games: make(map[string]*RegisteredMiniGame),
	}
}

// Register adds or updates a minigame.
func (r *MiniGameRegistry) Register(game *RegisteredMiniGame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cpy := *game
	r.games[game.ID] = &cpy
}

// Unregister removes a minigame.
func (r *MiniGameRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, id)
}

// Get returns a copy of a minigame, or nil if not found.
func (r *MiniGameRegistry) Get(id string) *RegisteredMiniGame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if game, ok := r.games[id]; ok {
		cpy := *game
		return &cpy
	}
	return nil
}

// Exists returns true if the minigame is registered.
func (r *MiniGameRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.games[id]
	return ok
}

// CommandTopic returns the enter topic for a minigame, falling back to
// DefaultCommandTopic when it is unregistered or did not announce one.
func (r *MiniGameRegistry) CommandTopic(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if game, ok := r.games[id]; ok && game.CommandTopic != "" {
		return game.CommandTopic
	}
	return DefaultCommandTopic(id)
}

// ByHost returns the ids of the minigames served by a host, sorted.
func (r *MiniGameRegistry) ByHost(hostID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, game := range r.games {
		if game.HostID == hostID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// All returns copies of all registered minigames ordered by id.
func (r *MiniGameRegistry) All() []*RegisteredMiniGame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*RegisteredMiniGame, 0, len(r.games))
	for _, game := range r.games {
		cpy := *game
		result = append(result, &cpy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// RegisterFromPayload registers every minigame in a registration payload.
// Missing topics are filled with the defaults.
func (r *MiniGameRegistry) RegisterFromPayload(payload *RegistrationPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, game := range payload.MiniGames {
		if game.ID == "" {
			continue
		}
		cmd := game.Topics.Command
		if cmd == "" {
			cmd = DefaultCommandTopic(game.ID)
		}
		res := game.Topics.Result
		if res == "" {
			res = DefaultResultTopic(game.ID)
		}
		r.games[game.ID] = &RegisteredMiniGame{
			ID:           game.ID,
			HostID:       payload.Host.ID,
			Kind:         game.Kind,
			CommandTopic: cmd,
			ResultTopic:  res,
		}
	}
}

// Clear removes all minigames from the registry.
func (r *MiniGameRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games = make(map[string]*RegisteredMiniGame)
}
