package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AaronLay10/SentientNarrative/internal/events"
	"github.com/AaronLay10/SentientNarrative/internal/mqtt"
	"github.com/AaronLay10/SentientNarrative/internal/narrative"
	"github.com/AaronLay10/SentientNarrative/internal/orchestrator"
	"github.com/AaronLay10/SentientNarrative/internal/world"
)

type stubRunner struct {
	status  orchestrator.Status
	nodes   map[string]bool
	played  []string
	playErr error
}

func (r *stubRunner) Status() orchestrator.Status { return r.status }
func (r *stubRunner) HasNode(id string) bool      { return r.nodes[id] }
func (r *stubRunner) PlayFrom(id string) error {
	r.played = append(r.played, id)
	return r.playErr
}

type stubResults struct {
	gameID string
	result mqtt.Result
	err    error
}

func (s *stubResults) Finish(gameID string, res mqtt.Result) error {
	s.gameID = gameID
	s.result = res
	return s.err
}

type stubEndings struct {
	triggered []string
	err       error
}

func (s *stubEndings) TriggerEnding(id string) error {
	s.triggered = append(s.triggered, id)
	return s.err
}

type stubStory struct {
	restarts int
	menu     bool
	reason   string
	err      error
}

func (s *stubStory) Restart() error              { s.restarts++; return s.err }
func (s *stubStory) InMainMenu() (bool, string) { return s.menu, s.reason }

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) OperatorResponse {
	t.Helper()
	var resp OperatorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	healthHandler(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Version == "" {
		t.Errorf("unexpected health response %+v", resp)
	}
}

func setReadiness(orchestratorReady, mqttConnected, mqttOptional, storeConnected, storeOptional bool) {
	SetOrchestratorReady(orchestratorReady)
	SetMQTTConnected(mqttConnected)
	SetMQTTOptional(mqttOptional)
	SetStoreConnected(storeConnected)
	SetStoreOptional(storeOptional)
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name                                   string
		ready, mqtt, mqttOpt, store, storeOpt bool
		wantCode                               int
		wantChecks                             map[string]string
	}{
		{"all ready", true, true, false, true, false, http.StatusOK,
			map[string]string{"orchestrator": "ok", "mqtt": "ok", "store": "ok"}},
		{"orchestrator not ready", false, true, false, true, false, http.StatusServiceUnavailable,
			map[string]string{"orchestrator": "not_ready"}},
		{"optional mqtt down", true, false, true, true, false, http.StatusOK,
			map[string]string{"mqtt": "unavailable_optional"}},
		{"required mqtt down", true, false, false, true, false, http.StatusServiceUnavailable,
			map[string]string{"mqtt": "disconnected"}},
		{"optional store down", true, true, false, false, true, http.StatusOK,
			map[string]string{"store": "unavailable_optional"}},
		{"everything down", false, false, false, false, false, http.StatusServiceUnavailable,
			map[string]string{"orchestrator": "not_ready", "mqtt": "disconnected", "store": "disconnected"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setReadiness(tt.ready, tt.mqtt, tt.mqttOpt, tt.store, tt.storeOpt)

			w := httptest.NewRecorder()
			readyHandler(w, httptest.NewRequest("GET", "/ready", nil))
			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}

			var resp ReadinessResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Ready != (tt.wantCode == http.StatusOK) {
				t.Errorf("ready = %v with status %d", resp.Ready, w.Code)
			}
			if !resp.Ready && resp.NotReadyMsg == "" {
				t.Error("expected non-empty message")
			}
			for check, want := range tt.wantChecks {
				if got := resp.Checks[check].Status; got != want {
					t.Errorf("%s: expected %q, got %q", check, want, got)
				}
			}
		})
	}
}

func TestOperatorPlay(t *testing.T) {
	events.Clear()
	runner := &stubRunner{nodes: map[string]bool{"n1": true}}
	h := NewServer(Deps{Runner: runner}).Handler()

	if w := post(t, h, "/operator/play", `{"node_id":"missing"}`); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown node, got %d", w.Code)
	}
	if w := post(t, h, "/operator/play", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without node_id, got %d", w.Code)
	}
	if w := post(t, h, "/operator/play", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", w.Code)
	}

	w := post(t, h, "/operator/play", `{"node_id":"n1"}`)
	if w.Code != http.StatusOK || !decodeResponse(t, w).OK {
		t.Fatalf("expected ok, got %d", w.Code)
	}
	if len(runner.played) != 1 || runner.played[0] != "n1" {
		t.Errorf("expected PlayFrom(n1), got %v", runner.played)
	}
	if len(events.Find("operator.play")) != 1 {
		t.Error("expected operator.play event")
	}

	runner.playErr = orchestrator.ErrBusy
	if w := post(t, h, "/operator/play", `{"node_id":"n1"}`); w.Code != http.StatusConflict {
		t.Errorf("expected 409 while busy, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/operator/play", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestOperatorDanger(t *testing.T) {
	ws := world.New([]string{"Mara", "Otto"})
	ws.IncreaseDanger("Mara", 1)
	h := NewServer(Deps{World: ws}).Handler()

	if w := post(t, h, "/operator/danger", `{"name":"Mara","amount":-5}`); w.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", w.Code)
	}
	if level, _ := ws.DangerLevel("Mara"); level != 0 {
		t.Errorf("expected danger clamped at 0, got %d", level)
	}
	if w := post(t, h, "/operator/danger", `{"name":"Nobody","amount":1}`); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown character, got %d", w.Code)
	}
}

func TestOperatorEndingAndReset(t *testing.T) {
	endings := &stubEndings{}
	story := &stubStory{}
	h := NewServer(Deps{Endings: endings, Story: story}).Handler()

	if w := post(t, h, "/operator/ending", `{"ending_id":"Ending_Pain"}`); w.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", w.Code)
	}
	if len(endings.triggered) != 1 || endings.triggered[0] != "Ending_Pain" {
		t.Errorf("unexpected endings %v", endings.triggered)
	}
	if w := post(t, h, "/operator/reset", `{}`); w.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", w.Code)
	}
	if story.restarts != 1 {
		t.Errorf("expected one restart, got %d", story.restarts)
	}
}

func TestOperatorEndingAndResetWhileBusy(t *testing.T) {
	endings := &stubEndings{err: orchestrator.ErrBusy}
	story := &stubStory{err: orchestrator.ErrBusy}
	h := NewServer(Deps{Endings: endings, Story: story}).Handler()

	if w := post(t, h, "/operator/ending", `{"ending_id":"Ending_Pain"}`); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for ending while busy, got %d", w.Code)
	}
	if w := post(t, h, "/operator/reset", `{}`); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for reset while busy, got %d", w.Code)
	}
}

func TestOperatorResetRequiresAdmin(t *testing.T) {
	withAuth(t, &AuthConfig{AdminUser: "admin", AdminPass: "a", OperatorUser: "op", OperatorPass: "o"})
	story := &stubStory{}
	h := NewServer(Deps{Story: story}).Handler()

	req := httptest.NewRequest("POST", "/operator/reset", nil)
	req.SetBasicAuth("op", "o")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden || story.restarts != 0 {
		t.Errorf("expected 403 for operator reset, got %d", w.Code)
	}
}

func TestMiniGameFinishedEndpoint(t *testing.T) {
	results := &stubResults{}
	h := NewServer(Deps{Results: results}).Handler()

	w := post(t, h, "/minigame/finished", `{"game_id":"cooking","success":true,"danger":[{"name":"Mara","amount":2}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", w.Code)
	}
	if results.gameID != "cooking" || !results.result.Success || len(results.result.Danger) != 1 {
		t.Errorf("unexpected result %+v", results)
	}

	results.err = mqtt.ErrUnexpectedResult
	if w := post(t, h, "/minigame/finished", `{"game_id":"other"}`); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for inactive game, got %d", w.Code)
	}

	results.err = errors.New("no handoff")
	if w := post(t, h, "/minigame/finished", `{"game_id":"cooking"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

func TestDisabledEndpoints(t *testing.T) {
	h := NewServer(Deps{}).Handler()
	for _, path := range []string{"/presenter/continue", "/minigame/finished", "/operator/danger", "/operator/ending", "/operator/reset"} {
		if w := post(t, h, path, `{}`); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
	}
}

type stubFlow struct {
	completed int
	menus     []string
}

func (f *stubFlow) OnNarrativeSegmentCompleted() { f.completed++ }
func (f *stubFlow) ReturnToMainMenu(reason string) {
	f.menus = append(f.menus, reason)
}

type stubScenes struct{}

func (stubScenes) EnterMiniGame(string) {}

// The remote presenter drives a real runner through the HTTP endpoints.
func TestPresenterEndpointsDriveRunner(t *testing.T) {
	events.Clear()
	g := &narrative.Graph{
		Version:     1,
		ID:          "NarrativeGraphs/Chapter_1",
		StartNodeID: "intro",
		Nodes: []narrative.Node{
			{ID: "intro", Type: narrative.NodeDialogue, Lines: []string{"Dinner is served."}, Next: "ask"},
			{ID: "ask", Type: narrative.NodeChoice, Options: []narrative.Option{
				{Text: "Eat", Target: "beat"},
				{Text: "Leave", Target: "beat"},
			}},
			{ID: "beat", Type: narrative.NodeVisualBeat},
		},
	}
	ws := world.New([]string{"Mara"})
	flow := &stubFlow{}
	presenter := NewRemotePresenter(nil)
	runner := orchestrator.NewRunner(orchestrator.RunnerConfig{
		Store:     narrative.NewMemoryStore(g),
		World:     ws,
		Presenter: presenter,
		Scenes:    stubScenes{},
		Flow:      flow,
	})
	if err := runner.Load(g); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := runner.PlayFrom("intro"); err != nil {
		t.Fatalf("play: %v", err)
	}

	h := NewServer(Deps{StoryID: "dinner-party", Runner: runner, World: ws, Presenter: presenter}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/state", nil))
	var state StateResponse
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Runner.NodeID != "intro" || state.Presenter.Waiting != WaitingLines {
		t.Fatalf("expected to wait on intro lines, got %+v", state)
	}

	if w := post(t, h, "/presenter/select", `{"index":0}`); w.Code != http.StatusConflict {
		t.Errorf("expected 409 selecting during lines, got %d", w.Code)
	}
	if w := post(t, h, "/presenter/continue", ``); w.Code != http.StatusOK {
		t.Fatalf("continue: got %d", w.Code)
	}
	if runner.Status().NodeID != "ask" {
		t.Fatalf("expected choice node, got %+v", runner.Status())
	}

	if w := post(t, h, "/presenter/select", `{"index":7}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for out of range option, got %d", w.Code)
	}
	if w := post(t, h, "/presenter/select", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without index, got %d", w.Code)
	}
	if w := post(t, h, "/presenter/select", `{"index":1}`); w.Code != http.StatusOK {
		t.Fatalf("select: got %d", w.Code)
	}
	if runner.Status().Awaiting != orchestrator.AwaitContinue {
		t.Fatalf("expected visual beat waiting for continue, got %+v", runner.Status())
	}

	if w := post(t, h, "/presenter/continue", ``); w.Code != http.StatusOK {
		t.Fatalf("continue: got %d", w.Code)
	}
	if flow.completed != 1 {
		t.Errorf("expected segment completed once, got %d", flow.completed)
	}
	if len(events.Find("presenter.choices")) != 1 || len(events.Find("presenter.line")) != 1 {
		t.Error("expected presenter events for the line and the choice")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	InitMetrics("dinner-party")
	ws := world.New([]string{"Mara", "Otto"})
	ws.IncreaseDanger("Otto", 4)
	runner := &stubRunner{status: orchestrator.Status{Busy: true, Awaiting: orchestrator.AwaitMiniGame}}
	h := NewServer(Deps{Runner: runner, World: ws}).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.Bytes()
	for _, want := range []string{
		"sentient_uptime_seconds{",
		`story="dinner-party"`,
		"sentient_runner_parked{",
		`character="Otto"} 4`,
		`character="Mara"} 0`,
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
