package mqtt

import (
	"sort"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SentientNarrative/internal/events"
)

// ResultHandler receives a minigame result payload.
type ResultHandler func(gameID string, payload []byte)

// ResultSubscriber manages subscriptions to minigame result topics.
// It ensures idempotent subscription handling across reconnects.
type ResultSubscriber struct {
	mu         sync.RWMutex
	client     Subscriber
	registry   *MiniGameRegistry
	handle     ResultHandler
	subscribed map[string]bool // topic -> subscribed
}

// NewResultSubscriber creates a new result subscriber.
func NewResultSubscriber(client Subscriber, registry *MiniGameRegistry, handle ResultHandler) *ResultSubscriber {
	return &ResultSubscriber{
		client:     client,
		registry:   registry,
		handle:     handle,
		subscribed: make(map[string]bool),
	}
}

// SubscribeGame subscribes to a minigame's result topic if not already subscribed.
// This is idempotent - calling multiple times for the same game is safe.
func (s *ResultSubscriber) SubscribeGame(game *RegisteredMiniGame) error {
	if game.ResultTopic == "" {
		return nil
	}

	s.mu.Lock()
	if s.subscribed[game.ResultTopic] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	gameID := game.ID
	handler := func(_ paho.Client, msg paho.Message) {
		s.handle(gameID, msg.Payload())
	}
	if err := s.client.Subscribe(game.ResultTopic, handler); err != nil {
		return err
	}

	s.mu.Lock()
	s.subscribed[game.ResultTopic] = true
	s.mu.Unlock()

	return nil
}

// SubscribeDefault subscribes to the default result topic of every minigame,
// deriving the game id from the topic.
func (s *ResultSubscriber) SubscribeDefault() error {
	s.mu.Lock()
	if s.subscribed[ResultWildcard] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	handler := func(_ paho.Client, msg paho.Message) {
		gameID, ok := GameIDFromTopic(msg.Topic())
		if !ok {
			events.Emit("warning", "minigame.error", "result on unexpected topic", map[string]interface{}{
				"topic": msg.Topic(),
			})
			return
		}
		// Registered games with a default result topic are also matched by
		// their own subscription.
		if game := s.registry.Get(gameID); game != nil && game.ResultTopic == msg.Topic() && s.IsSubscribed(msg.Topic()) {
			return
		}
		s.handle(gameID, msg.Payload())
	}
	if err := s.client.Subscribe(ResultWildcard, handler); err != nil {
		return err
	}

	s.mu.Lock()
	s.subscribed[ResultWildcard] = true
	s.mu.Unlock()
	return nil
}

// SubscribeAll subscribes to all minigames in the registry.
// Useful for initial subscription after connection.
func (s *ResultSubscriber) SubscribeAll() error {
	for _, game := range s.registry.All() {
		if err := s.SubscribeGame(game); err != nil {
			// Log error but continue with other games
			events.Emit("error", "minigame.error", "failed to subscribe to minigame results", map[string]interface{}{
				"game_id": game.ID,
				"topic":   game.ResultTopic,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// IsSubscribed returns true if the topic is already subscribed.
func (s *ResultSubscriber) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribed[topic]
}

// SubscribedTopics returns all subscribed topics, sorted.
func (s *ResultSubscriber) SubscribedTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]string, 0, len(s.subscribed))
	for topic := range s.subscribed {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// ClearSubscriptions clears the subscription tracking.
// Call this on disconnect to allow re-subscription on reconnect.
func (s *ResultSubscriber) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = make(map[string]bool)
}
