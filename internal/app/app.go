// Package app wires the narrative engine to its configured event store,
// MQTT broker and HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SentientNarrative/internal/api"
	"github.com/AaronLay10/SentientNarrative/internal/config"
	"github.com/AaronLay10/SentientNarrative/internal/events"
	"github.com/AaronLay10/SentientNarrative/internal/mqtt"
	"github.com/AaronLay10/SentientNarrative/internal/narrative"
	"github.com/AaronLay10/SentientNarrative/internal/orchestrator"
	"github.com/AaronLay10/SentientNarrative/internal/world"
)

// hostHealthInterval is how often minigame host heartbeats are checked.
const hostHealthInterval = 5 * time.Second

var errMQTTDisabled = errors.New("mqtt disabled")

// App is one running story.
type App struct {
	cfg *config.StoryConfig
	env *config.Env

	store     EventStore
	world     *world.State
	graphs    narrative.Store
	presenter *api.RemotePresenter
	runner    *orchestrator.Runner
	flow      *orchestrator.ChapterFlow
	outcome   *orchestrator.OutcomeSelector
	scenes    *mqtt.SceneHost

	client     *mqtt.Client
	registry   *mqtt.MiniGameRegistry
	subscriber *mqtt.ResultSubscriber
	monitor    *mqtt.Monitor

	server *api.Server
}

// New builds the object graph for a story. store may be nil for an
// in-memory session. Nothing is started until Start.
func New(cfg *config.StoryConfig, env *config.Env, store EventStore) *App {
	a := &App{
		cfg:       cfg,
		env:       env,
		store:     store,
		world:     world.New(cfg.Characters),
		graphs:    narrative.NewDirStore(cfg.GraphRoot()),
		presenter: api.NewRemotePresenter(nil),
		registry:  mqtt.NewMiniGameRegistry(),
	}

	var conn mqtt.Conn = offlineConn{}
	var audio orchestrator.AudioCue = silentAudio{}
	if !env.MQTTDisabled {
		a.client = mqtt.NewClient(mqtt.ClientConfig{
			BrokerURL:        env.MQTTURL,
			ClientID:         env.MQTTClientID,
			OnConnect:        a.onMQTTConnect,
			OnConnectionLost: a.onMQTTConnectionLost,
		})
		conn = a.client
		audio = mqtt.NewAudioPublisher(conn, mqtt.AudioTopic)
	}

	a.scenes = mqtt.NewSceneHost(conn, a.registry, a.world)
	a.subscriber = mqtt.NewResultSubscriber(conn, a.registry, func(gameID string, payload []byte) {
		_ = a.scenes.HandleResult(gameID, payload)
	})
	a.monitor = mqtt.NewMonitor(miniGameSpecs(cfg), a.registry, a.subscriber, 2.0)

	a.flow = orchestrator.NewChapterFlow(orchestrator.ChapterFlowConfig{
		Store:          a.graphs,
		World:          a.world,
		Chapters:       cfg.Graphs.Chapters,
		ResolveOutcome: cfg.Graphs.ResolveOutcome,
		OnMainMenu: func(reason string) {
			slog.Info("returned to main menu", "reason", reason)
		},
	})
	a.runner = orchestrator.NewRunner(orchestrator.RunnerConfig{
		Store:     a.graphs,
		World:     a.world,
		Presenter: a.presenter,
		Scenes:    a.scenes,
		Flow:      a.flow,
	})
	a.outcome = orchestrator.NewOutcomeSelector(orchestrator.OutcomeConfig{
		World:        a.world,
		Store:        a.graphs,
		Audio:        audio,
		Player:       a.runner,
		Flow:         a.flow,
		EndingPrefix: cfg.EndingPrefix(),
	})
	a.runner.SetOutcomeResolver(a.outcome)
	a.flow.Attach(a.runner, a.outcome)
	a.scenes.Attach(a.runner)

	a.server = api.NewServer(api.Deps{
		StoryID:   cfg.Story.ID,
		Runner:    a.runner,
		World:     a.world,
		Presenter: a.presenter,
		Results:   a.scenes,
		Endings:   a.outcome,
		Story:     a.flow,
	})
	return a
}

// Runner returns the graph runner.
func (a *App) Runner() *orchestrator.Runner { return a.runner }

// World returns the session's world state.
func (a *App) World() *world.State { return a.world }

// Presenter returns the remote presenter.
func (a *App) Presenter() *api.RemotePresenter { return a.presenter }

// Server returns the HTTP API server.
func (a *App) Server() *api.Server { return a.server }

// Start restores the world from the event log, connects to the broker and
// begins play. A parked minigame handoff in the log is left parked so the
// minigame's result resumes it; otherwise play starts at the last chapter
// recorded, or the first.
func (a *App) Start() error {
	events.Emit("info", "system.startup", "orchestrator starting", map[string]interface{}{
		"story_id": a.cfg.Story.ID,
		"chapters": len(a.cfg.Graphs.Chapters),
		"pid":      os.Getpid(),
	})

	var restored *orchestrator.RestoredState
	if a.store != nil {
		events.SetSink(a.store)
		api.SetStoreConnected(true)

		state, n, err := orchestrator.RestoreFromEvents(a.store, a.env.RestoreLimit)
		if err != nil {
			slog.Warn("event restore failed, starting fresh", "error", err)
		} else if state != nil {
			orchestrator.ApplyRestoredState(a.world, state)
			orchestrator.EmitStartupRestore(n, a.cfg.Story.ID, state)
			restored = state
		}
	} else {
		api.SetStoreOptional(true)
	}

	if a.client != nil {
		if err := a.client.Connect(); err != nil {
			slog.Warn("mqtt: broker unavailable, retrying in background", "broker", a.client.BrokerURL(), "error", err)
		}
		a.monitor.Start(hostHealthInterval)
	} else {
		api.SetMQTTOptional(true)
	}

	api.SetOrchestratorReady(true)

	if restored != nil && restored.Pending != nil {
		slog.Info("resuming with minigame in progress", "graph_id", restored.Pending.GraphID)
		return nil
	}
	return a.flow.StartChapter(a.chapterIndex(restored))
}

func (a *App) chapterIndex(restored *orchestrator.RestoredState) int {
	if restored == nil || restored.Chapter == "" {
		return 0
	}
	for i, id := range a.flow.Chapters() {
		if id == restored.Chapter {
			return i
		}
	}
	return 0
}

// Run serves the HTTP API until ctx is done.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe(a.cfg.UIPort())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

// Close stops background work and releases connections.
func (a *App) Close() {
	events.Emit("info", "system.shutdown", "orchestrator stopping", nil)
	api.SetOrchestratorReady(false)

	a.monitor.Stop()
	if a.client != nil {
		a.client.Disconnect()
	}
	if a.store != nil {
		events.SetSink(nil)
		if err := a.store.Close(); err != nil {
			slog.Warn("closing event store", "error", err)
		}
	}
}

func (a *App) onMQTTConnect() {
	api.SetMQTTConnected(true)

	if err := a.client.Subscribe(mqtt.RegistrationTopic, func(_ paho.Client, msg paho.Message) {
		a.monitor.HandleMessage(msg.Payload())
	}); err != nil {
		slog.Warn("mqtt: failed to subscribe", "topic", mqtt.RegistrationTopic, "error", err)
	}
	if err := a.subscriber.SubscribeDefault(); err != nil {
		slog.Warn("mqtt: failed to subscribe", "topic", mqtt.ResultWildcard, "error", err)
	}
	_ = a.subscriber.SubscribeAll()

	slog.Info("mqtt: connected", "broker", a.client.BrokerURL())
}

func (a *App) onMQTTConnectionLost(err error) {
	api.SetMQTTConnected(false)
	a.subscriber.ClearSubscriptions()
	events.Emit("warning", "system.error", "mqtt connection lost", map[string]interface{}{
		"error": err.Error(),
	})
}

func miniGameSpecs(cfg *config.StoryConfig) map[string]mqtt.MiniGameSpec {
	specs := make(map[string]mqtt.MiniGameSpec, len(cfg.MiniGames))
	for id, mg := range cfg.MiniGames {
		specs[id] = mqtt.MiniGameSpec{Kind: mg.Kind, Required: mg.Required}
	}
	return specs
}

// offlineConn stands in for the broker when MQTT is disabled. Minigame
// entries fail to publish and stay parked until a result is posted to the API.
type offlineConn struct{}

func (offlineConn) Publish(topic string, payload []byte) error {
	return fmt.Errorf("publish %s: %w", topic, errMQTTDisabled)
}

func (offlineConn) Subscribe(topic string, _ paho.MessageHandler) error {
	return fmt.Errorf("subscribe %s: %w", topic, errMQTTDisabled)
}

type silentAudio struct{}

func (silentAudio) PlayTrack(int) {}
