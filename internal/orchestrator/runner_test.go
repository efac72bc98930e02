package orchestrator

import (
	"errors"
	"testing"
	"time"

	"github.com/AaronLay10/SentientNarrative/internal/events"
	"github.com/AaronLay10/SentientNarrative/internal/narrative"
	"github.com/AaronLay10/SentientNarrative/internal/world"
)

func chapterGraph() *narrative.Graph {
	return &narrative.Graph{
		ID:          "NarrativeGraphs/Chapter_2",
		StartNodeID: "intro",
		Nodes: []narrative.Node{
			dialogue("intro", "kitchen", "The stove is still warm."),
			{ID: "kitchen", Type: narrative.NodeMiniGame, GameID: "cooking", Next: "after"},
			dialogue("after", "", "Dinner is served."),
		},
	}
}

func TestDialogueChainCompletesSegment(t *testing.T) {
	events.Clear()
	g := &narrative.Graph{
		ID:          "g",
		StartNodeID: "a",
		Nodes: []narrative.Node{
			dialogue("a", "b", "one"),
			dialogue("b", "", "two"),
		},
	}
	h := newHarness(g)
	h.presenter.auto = true
	r := h.runner()

	if err := r.Load(g); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := r.PlayFrom("a"); err != nil {
		t.Fatalf("play: %v", err)
	}

	if h.flow.completed != 1 {
		t.Errorf("expected segment completed once, got %d", h.flow.completed)
	}
	if h.presenter.lineCount() != 2 {
		t.Errorf("expected 2 line blocks shown, got %d", h.presenter.lineCount())
	}
	st := r.Status()
	if st.Busy || st.NodeID != "b" || st.Awaiting != AwaitNone {
		t.Errorf("unexpected final status %+v", st)
	}
	if len(events.Find("node.completed")) != 2 {
		t.Errorf("expected 2 node.completed events")
	}
	if len(events.Find("segment.completed")) != 1 {
		t.Errorf("expected 1 segment.completed event")
	}
}

func TestPlayFromRejectedWhileBusy(t *testing.T) {
	events.Clear()
	g := &narrative.Graph{
		ID:          "g",
		StartNodeID: "a",
		Nodes:       []narrative.Node{dialogue("a", "", "x"), dialogue("b", "", "y")},
	}
	h := newHarness(g)
	r := h.runner()
	r.Load(g)

	if err := r.PlayFrom("a"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if got := r.Awaiting(); got != AwaitLines {
		t.Fatalf("expected awaiting lines, got %s", got)
	}

	err := r.PlayFrom("b")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	st := r.Status()
	if !st.Busy || st.NodeID != "a" {
		t.Errorf("state changed by rejected call: %+v", st)
	}
	if h.presenter.lineCount() != 1 {
		t.Errorf("rejected call must not reach the presenter")
	}
	if len(events.Find("runner.rejected")) != 1 {
		t.Errorf("expected runner.rejected event")
	}
}

func TestPlayFromUnknownNode(t *testing.T) {
	events.Clear()
	g := &narrative.Graph{ID: "g", StartNodeID: "a", Nodes: []narrative.Node{dialogue("a", "", "x")}}
	h := newHarness(g)
	r := h.runner()

	if err := r.PlayFrom("a"); !errors.Is(err, ErrNoGraph) {
		t.Fatalf("expected ErrNoGraph before load, got %v", err)
	}

	r.Load(g)
	err := r.PlayFrom("missing")
	if !errors.Is(err, narrative.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	if st := r.Status(); st.Busy || st.NodeID != "" {
		t.Errorf("expected untouched state, got %+v", st)
	}
	found := events.Find("node.not_found")
	if len(found) != 1 || found[0].Fields["graph_id"] != "g" {
		t.Errorf("expected node.not_found with graph context, got %v", found)
	}
}

func TestChoiceFollowsSelectedTarget(t *testing.T) {
	events.Clear()
	g := &narrative.Graph{
		ID:          "g",
		StartNodeID: "ask",
		Nodes: []narrative.Node{
			{
				ID:   "ask",
				Type: narrative.NodeChoice,
				// Next is ignored on choice nodes.
				Next: "left",
				Options: []narrative.Option{
					{Text: "Left", Target: "left"},
					{Text: "Right", Target: "right", Consequence: "Otto+1"},
				},
			},
			dialogue("left", "", "left"),
			dialogue("right", "", "right"),
		},
	}
	h := newHarness(g)
	r := h.runner()
	r.Load(g)
	r.PlayFrom("ask")

	if got := r.Awaiting(); got != AwaitChoice {
		t.Fatalf("expected awaiting choice, got %s", got)
	}
	if len(h.presenter.options) != 2 {
		t.Fatalf("expected 2 options shown, got %d", len(h.presenter.options))
	}

	h.presenter.choose(7)
	if got := r.Awaiting(); got != AwaitChoice {
		t.Errorf("out-of-range selection must keep waiting, got %s", got)
	}
	if len(events.Find("choice.invalid")) != 1 {
		t.Errorf("expected choice.invalid event")
	}

	h.presenter.choose(1)
	st := r.Status()
	if st.NodeID != "right" || st.Awaiting != AwaitLines {
		t.Errorf("expected to be showing right, got %+v", st)
	}

	selected := events.Find("choice.selected")
	if len(selected) != 1 || selected[0].Fields["consequence"] != "Otto+1" {
		t.Errorf("expected choice.selected with consequence, got %v", selected)
	}

	// A second selection from the same prompt is stale.
	h.presenter.choose(0)
	if st := r.Status(); st.NodeID != "right" {
		t.Errorf("stale selection moved the runner to %s", st.NodeID)
	}
}

func TestMiniGameHandoffAndResume(t *testing.T) {
	events.Clear()
	g := chapterGraph()
	h := newHarness(g)
	r := h.runner()
	r.Load(g)

	if err := r.PlayFrom("kitchen"); err != nil {
		t.Fatalf("play: %v", err)
	}

	if got := h.world.GetFlag(world.FlagReturnGraphID); got != g.ID {
		t.Errorf("return_graph_id = %q, want %q", got, g.ID)
	}
	if got := h.world.GetFlag(world.FlagReturnNodeID); got != "intro" {
		t.Errorf("return_node_id = %q, want checkpoint intro", got)
	}
	if len(h.scenes.entered) != 1 || h.scenes.entered[0] != "cooking" {
		t.Errorf("expected cooking minigame entered, got %v", h.scenes.entered)
	}
	st := r.Status()
	if !st.Busy || !st.Parked() {
		t.Errorf("expected busy and parked, got %+v", st)
	}

	// Parked runners still reject PlayFrom.
	if err := r.PlayFrom("after"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy while parked, got %v", err)
	}

	// Resume on a fresh instance, as after a scene change.
	fresh := h.runner()
	if err := fresh.OnMiniGameFinished(true); err != nil {
		t.Fatalf("resume: %v", err)
	}

	if st := fresh.Status(); st.GraphID != g.ID || st.NodeID != "after" {
		t.Errorf("expected resume at after, got %+v", st)
	}
	if len(h.world.Flags()) != 0 {
		t.Errorf("expected flags cleared after resume, got %v", h.world.Flags())
	}
}

func TestMiniGameFailureResumesAtCheckpoint(t *testing.T) {
	events.Clear()
	g := chapterGraph()
	h := newHarness(g)
	r := h.runner()
	r.Load(g)
	r.PlayFrom("kitchen")

	if err := r.OnMiniGameFinished(false); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if st := r.Status(); st.NodeID != "intro" {
		t.Errorf("expected restart at checkpoint intro, got %s", st.NodeID)
	}
	if _, ok := h.world.Handoff(); ok {
		t.Error("expected handoff consumed")
	}
}

func TestMiniGameAsLastBeatCompletesSegment(t *testing.T) {
	g := &narrative.Graph{
		ID:          "g",
		StartNodeID: "m",
		Nodes:       []narrative.Node{{ID: "m", Type: narrative.NodeMiniGame, GameID: "judge"}},
	}
	h := newHarness(g)
	r := h.runner()
	r.Load(g)
	r.PlayFrom("m")

	if err := r.OnMiniGameFinished(true); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if h.flow.completed != 1 {
		t.Errorf("expected segment completed, got %d", h.flow.completed)
	}
}

func TestMiniGameFinishedWithoutHandoff(t *testing.T) {
	events.Clear()
	h := newHarness()
	r := h.runner()

	err := r.OnMiniGameFinished(true)
	if !errors.Is(err, ErrNoHandoff) {
		t.Fatalf("expected ErrNoHandoff, got %v", err)
	}
	if len(h.flow.menus) != 1 {
		t.Errorf("expected return to main menu, got %v", h.flow.menus)
	}
	if len(events.Find("minigame.resume_failed")) != 1 {
		t.Errorf("expected minigame.resume_failed event")
	}
}

func TestMiniGameResumeUnknownGraph(t *testing.T) {
	h := newHarness()
	h.world.ParkHandoff(world.Handoff{GraphID: "NarrativeGraphs/Gone", CheckpointNodeID: "a"})
	r := h.runner()

	err := r.OnMiniGameFinished(false)
	if !errors.Is(err, narrative.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(h.flow.menus) != 1 {
		t.Errorf("expected return to main menu, got %v", h.flow.menus)
	}
}

func TestDanglingNextReturnsToMainMenu(t *testing.T) {
	events.Clear()
	g := &narrative.Graph{
		ID:          "g",
		StartNodeID: "a",
		Nodes:       []narrative.Node{dialogue("a", "nowhere", "x")},
	}
	h := newHarness(g)
	h.presenter.auto = true
	r := h.runner()
	r.Load(g)
	r.PlayFrom("a")

	if len(h.flow.menus) != 1 {
		t.Fatalf("expected main menu after dangling next, got %v", h.flow.menus)
	}
	if h.flow.completed != 0 {
		t.Errorf("dangling next must not complete the segment")
	}
	if st := r.Status(); st.Busy {
		t.Errorf("runner should be idle, got %+v", st)
	}
}

func TestZoomRunsBeforeContent(t *testing.T) {
	g := &narrative.Graph{
		ID:          "g",
		StartNodeID: "a",
		Nodes: []narrative.Node{{
			ID:          "a",
			Type:        narrative.NodeDialogue,
			Lines:       []string{"close up"},
			ZoomOnEnter: &narrative.Zoom{DurationSeconds: 0.5, Scale: 1.4},
		}},
	}
	h := newHarness(g)
	r := h.runner()
	r.Load(g)
	r.PlayFrom("a")

	if got := r.Awaiting(); got != AwaitZoom {
		t.Fatalf("expected awaiting zoom, got %s", got)
	}
	if h.presenter.lineCount() != 0 {
		t.Fatal("lines shown before zoom finished")
	}

	h.presenter.completeZoom()
	if got := r.Awaiting(); got != AwaitLines {
		t.Errorf("expected awaiting lines after zoom, got %s", got)
	}

	h.presenter.completeLines()
	if h.flow.completed != 1 {
		t.Errorf("expected segment completed")
	}
}

func TestAutoAdvanceWaitsForClock(t *testing.T) {
	g := &narrative.Graph{
		ID:          "g",
		StartNodeID: "a",
		Nodes: []narrative.Node{{
			ID:          "a",
			Type:        narrative.NodeDialogue,
			Lines:       []string{"..."},
			AutoAdvance: &narrative.AutoAdvance{DelaySeconds: 2},
		}},
	}
	h := newHarness(g)
	h.presenter.auto = true
	r := h.runner()
	r.Load(g)
	r.PlayFrom("a")

	if got := r.Awaiting(); got != AwaitDelay {
		t.Fatalf("expected awaiting delay, got %s", got)
	}
	if len(h.clock.delays) != 1 || h.clock.delays[0] != 2*time.Second {
		t.Errorf("expected one 2s timer, got %v", h.clock.delays)
	}
	if h.flow.completed != 0 {
		t.Fatal("completed before the delay elapsed")
	}

	h.clock.fire()
	if h.flow.completed != 1 {
		t.Errorf("expected completion after delay")
	}
}

func TestDoubleCompletionIsIgnored(t *testing.T) {
	events.Clear()
	g := &narrative.Graph{
		ID:          "g",
		StartNodeID: "a",
		Nodes:       []narrative.Node{dialogue("a", "b", "x"), dialogue("b", "", "y")},
	}
	h := newHarness(g)
	r := h.runner()
	r.Load(g)
	r.PlayFrom("a")

	first := h.presenter.onLines
	first()
	first()

	if got := len(events.Find("node.started")); got != 2 {
		t.Errorf("expected 2 node.started events, got %d", got)
	}
	if st := r.Status(); st.NodeID != "b" || st.Awaiting != AwaitLines {
		t.Errorf("expected to be waiting on b, got %+v", st)
	}
}

func TestVisualBeatWaitsForContinue(t *testing.T) {
	g := &narrative.Graph{
		ID:          "g",
		StartNodeID: "v",
		Nodes: []narrative.Node{{
			ID:      "v",
			Type:    narrative.NodeVisualBeat,
			Visuals: narrative.Visuals{Background: "attic"},
		}},
	}
	h := newHarness(g)
	r := h.runner()
	r.Load(g)
	r.PlayFrom("v")

	if h.presenter.hides != 1 {
		t.Errorf("expected HideAll on visual beat, got %d", h.presenter.hides)
	}
	if len(h.presenter.visuals) != 1 || h.presenter.visuals[0].Background != "attic" {
		t.Errorf("expected visuals applied, got %v", h.presenter.visuals)
	}
	if got := r.Awaiting(); got != AwaitContinue {
		t.Fatalf("expected awaiting continue, got %s", got)
	}

	h.presenter.pressContinue()
	if h.flow.completed != 1 {
		t.Errorf("expected segment completed after continue")
	}
}

func TestTerminalEndingUnlocksAndCompletes(t *testing.T) {
	events.Clear()
	g := &narrative.Graph{
		ID:          "NarrativeGraphs/Ending_Pain",
		StartNodeID: "Ending_Pain",
		Nodes:       []narrative.Node{{ID: "Ending_Pain", Type: narrative.NodeEnding}},
	}
	h := newHarness(g)
	r := h.runner()
	resolver := &mockResolver{}
	r.SetOutcomeResolver(resolver)
	r.Load(g)
	r.PlayFrom("Ending_Pain")

	if !h.world.HasUnlockedEnding("Ending_Pain") {
		t.Error("expected terminal ending to unlock its own id")
	}
	if resolver.calls != 0 {
		t.Error("terminal ending must not resolve the outcome")
	}
	if h.flow.completed != 1 {
		t.Errorf("expected segment completed")
	}
	if len(events.Find("ending.reached")) != 1 {
		t.Errorf("expected ending.reached event")
	}
}

func TestResolvingEndingTriggersOutcome(t *testing.T) {
	g := &narrative.Graph{
		ID:          "g",
		StartNodeID: "end",
		Nodes:       []narrative.Node{{ID: "end", Type: narrative.NodeEnding, ResolveOutcome: true}},
	}
	h := newHarness(g)
	r := h.runner()
	r.Load(g)

	// Without a resolver the player is sent to the main menu.
	r.PlayFrom("end")
	if len(h.flow.menus) != 1 {
		t.Fatalf("expected main menu without resolver, got %v", h.flow.menus)
	}

	resolver := &mockResolver{}
	r.SetOutcomeResolver(resolver)
	r.PlayFrom("end")
	if resolver.calls != 1 {
		t.Errorf("expected TriggerFinalEnding once, got %d", resolver.calls)
	}
	if st := r.Status(); st.Busy {
		t.Errorf("expected runner idle, got %+v", st)
	}
}

func TestResolvingEndingLogsResolverFailure(t *testing.T) {
	events.Clear()
	g := &narrative.Graph{
		ID:          "g",
		StartNodeID: "end",
		Nodes:       []narrative.Node{{ID: "end", Type: narrative.NodeEnding, ResolveOutcome: true}},
	}
	h := newHarness(g)
	r := h.runner()
	r.Load(g)
	r.SetOutcomeResolver(&mockResolver{err: narrative.ErrNotFound})

	r.PlayFrom("end")

	found := events.Find("runner.error")
	if len(found) != 1 {
		t.Fatalf("expected one runner.error, got %d", len(found))
	}
	if found[0].Fields["node_id"] != "end" || found[0].Message != narrative.ErrNotFound.Error() {
		t.Errorf("unexpected runner.error %+v", found[0])
	}
}

func TestLoadRules(t *testing.T) {
	g := chapterGraph()
	other := &narrative.Graph{ID: "other", StartNodeID: "x", Nodes: []narrative.Node{dialogue("x", "", "x")}}
	h := newHarness(g, other)
	r := h.runner()
	r.Load(g)

	r.PlayFrom("intro")
	if err := r.Load(other); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while showing lines, got %v", err)
	}
	h.presenter.completeLines()

	// intro advanced into the minigame, so the runner is parked.
	if !r.Status().Parked() {
		t.Fatalf("expected parked, got %+v", r.Status())
	}
	if err := r.Load(other); err != nil {
		t.Fatalf("load while parked: %v", err)
	}
	if st := r.Status(); st.Busy || st.GraphID != "other" {
		t.Errorf("expected idle on other graph, got %+v", st)
	}
}
