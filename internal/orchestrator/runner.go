package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/AaronLay10/SentientNarrative/internal/events"
	"github.com/AaronLay10/SentientNarrative/internal/narrative"
	"github.com/AaronLay10/SentientNarrative/internal/world"
)

var (
	// ErrBusy is returned when a walk is already in progress.
	ErrBusy = errors.New("orchestrator: runner busy")
	// ErrNoGraph is returned when PlayFrom is called before Load.
	ErrNoGraph = errors.New("orchestrator: no graph loaded")
	// ErrNoHandoff is returned when a minigame result arrives with no parked handoff.
	ErrNoHandoff = errors.New("orchestrator: no minigame handoff parked")
)

// RunnerConfig wires a Runner to its collaborators.
type RunnerConfig struct {
	Store     narrative.Store
	World     *world.State
	Presenter Presenter
	Scenes    SceneHost
	Flow      FlowController
	Clock     Clock
}

// Runner walks a narrative graph one node at a time.
//
// At most one node is processed at a time: PlayFrom is rejected while a node
// is busy. A minigame node parks the walk (busy stays set) until
// OnMiniGameFinished, which can also be called on a fresh Runner because all
// resume information lives in the world state's temp flags.
type Runner struct {
	store     narrative.Store
	world     *world.State
	presenter Presenter
	scenes    SceneHost
	flow      FlowController
	clock     Clock

	mu         sync.Mutex
	graph      *narrative.Graph
	node       *narrative.Node
	busy       bool
	awaiting   AwaitState
	activation uint64
	outcome    OutcomeResolver
}

// NewRunner creates a runner. A nil Clock uses time.AfterFunc.
func NewRunner(cfg RunnerConfig) *Runner {
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock()
	}
	return &Runner{
		store:     cfg.Store,
		world:     cfg.World,
		presenter: cfg.Presenter,
		scenes:    cfg.Scenes,
		flow:      cfg.Flow,
		clock:     clock,
		awaiting:  AwaitNone,
	}
}

// SetOutcomeResolver sets the resolver used by outcome-resolving ending nodes.
func (r *Runner) SetOutcomeResolver(o OutcomeResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcome = o
}

// Status returns the runner's current state.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Status{Busy: r.busy, Awaiting: r.awaiting}
	if r.graph != nil {
		s.GraphID = r.graph.ID
	}
	if r.node != nil {
		s.NodeID = r.node.ID
	}
	return s
}

// Awaiting returns the suspension point the runner is parked on.
func (r *Runner) Awaiting() AwaitState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.awaiting
}

// HasNode returns true if the node exists in the loaded graph.
func (r *Runner) HasNode(nodeID string) bool {
	r.mu.Lock()
	g := r.graph
	r.mu.Unlock()
	return g != nil && g.HasNode(nodeID)
}

// Load makes g the current graph. It is rejected while a node is being
// processed, but allowed while parked on a minigame, which abandons that walk.
func (r *Runner) Load(g *narrative.Graph) error {
	if g == nil {
		return ErrNoGraph
	}

	r.mu.Lock()
	if r.busy && r.awaiting != AwaitMiniGame {
		fields := r.positionLocked()
		r.mu.Unlock()
		fields["requested_graph_id"] = g.ID
		emit("warning", "runner.rejected", "load while busy", fields)
		return ErrBusy
	}
	r.graph = g
	r.node = nil
	r.busy = false
	r.awaiting = AwaitNone
	r.activation++
	r.mu.Unlock()

	emit("info", "graph.loaded", "", map[string]interface{}{"graph_id": g.ID})
	return nil
}

// PlayFrom starts processing nodeID in the current graph.
// A missing node or a busy runner is logged and leaves the state unchanged.
func (r *Runner) PlayFrom(nodeID string) error {
	r.mu.Lock()
	g := r.graph
	if g == nil {
		r.mu.Unlock()
		emit("error", "runner.error", "no graph loaded", map[string]interface{}{"node_id": nodeID})
		return ErrNoGraph
	}

	node, err := g.GetNode(nodeID)
	if err != nil {
		r.mu.Unlock()
		emit("error", "node.not_found", err.Error(), map[string]interface{}{
			"graph_id": g.ID,
			"node_id":  nodeID,
		})
		return err
	}

	if r.busy {
		fields := r.positionLocked()
		r.mu.Unlock()
		fields["requested_node_id"] = nodeID
		emit("warning", "runner.rejected", "play while busy", fields)
		return ErrBusy
	}

	r.busy = true
	r.node = node
	r.awaiting = AwaitNone
	r.activation++
	act := r.activation
	r.mu.Unlock()

	emit("info", "node.started", "", map[string]interface{}{
		"graph_id": g.ID,
		"node_id":  node.ID,
		"type":     string(node.Type),
	})
	r.processNode(act, g, node)
	return nil
}

// OnMiniGameFinished resumes a walk parked by a minigame node. On success the
// walk continues at the minigame node's next node, otherwise at the graph's
// checkpoint. The temp flags are cleared once read.
func (r *Runner) OnMiniGameFinished(success bool) error {
	r.mu.Lock()
	if r.busy && r.awaiting != AwaitMiniGame {
		fields := r.positionLocked()
		r.mu.Unlock()
		emit("warning", "runner.rejected", "minigame result while busy", fields)
		return ErrBusy
	}
	r.mu.Unlock()

	h, ok := r.world.TakeHandoff()
	fields := h.Fields()
	fields["success"] = success
	emit("info", "minigame.finished", "", fields)

	if !ok {
		emit("error", "minigame.resume_failed", "no handoff parked", fields)
		r.flow.ReturnToMainMenu("minigame finished without a parked handoff")
		return ErrNoHandoff
	}

	target := h.CheckpointNodeID
	if success {
		target = h.ContinueNodeID
	}

	g, err := r.store.Resolve(h.GraphID)
	if err != nil {
		emit("error", resolveEvent(err), err.Error(), fields)
		r.flow.ReturnToMainMenu(fmt.Sprintf("graph %s not found", h.GraphID))
		return err
	}

	if err := r.Load(g); err != nil {
		return err
	}

	if target == "" {
		// The minigame was the last beat of the segment.
		emit("info", "segment.completed", "", map[string]interface{}{"graph_id": g.ID})
		r.flow.OnNarrativeSegmentCompleted()
		return nil
	}

	return r.advance(g.ID, "", target)
}

func (r *Runner) processNode(act uint64, g *narrative.Graph, node *narrative.Node) {
	r.presenter.SetVisuals(node.Visuals)
	if node.Type == narrative.NodeVisualBeat {
		r.presenter.HideAll()
	}

	if z := node.ZoomOnEnter; z != nil {
		if !r.suspend(act, AwaitZoom) {
			return
		}
		r.presenter.ZoomIn(z.Duration(), z.Scale, r.resume(act, AwaitZoom, func() {
			r.dispatch(act, g, node)
		}))
		return
	}

	r.dispatch(act, g, node)
}

func (r *Runner) dispatch(act uint64, g *narrative.Graph, node *narrative.Node) {
	switch node.Type {
	case narrative.NodeDialogue:
		if !r.suspend(act, AwaitLines) {
			return
		}
		r.presenter.ShowLines(node.Lines, r.resume(act, AwaitLines, func() {
			r.afterContent(act, g, node)
		}))

	case narrative.NodeChoice:
		if !r.suspend(act, AwaitChoice) {
			return
		}
		emit("info", "choice.presented", "", map[string]interface{}{
			"graph_id": g.ID,
			"node_id":  node.ID,
			"options":  len(node.Options),
		})
		r.presenter.ShowChoices(node.Options, func(index int) {
			r.selectOption(act, g, node, index)
		})

	case narrative.NodeMiniGame:
		r.handOff(act, g, node)

	case narrative.NodeEnding:
		r.endNode(act, g, node)

	case narrative.NodeVisualBeat:
		if node.AutoAdvance != nil {
			r.afterContent(act, g, node)
			return
		}
		if !r.suspend(act, AwaitContinue) {
			return
		}
		r.presenter.WaitForContinue(r.resume(act, AwaitContinue, func() {
			r.finish(act, g, node)
		}))

	default:
		emit("error", "runner.error", "unknown node type", map[string]interface{}{
			"graph_id": g.ID,
			"node_id":  node.ID,
			"type":     string(node.Type),
		})
		r.finish(act, g, node)
	}
}

// afterContent applies the node's auto-advance delay, if any, then finishes.
func (r *Runner) afterContent(act uint64, g *narrative.Graph, node *narrative.Node) {
	if node.AutoAdvance == nil {
		r.finish(act, g, node)
		return
	}
	if !r.suspend(act, AwaitDelay) {
		return
	}
	r.clock.AfterFunc(node.AutoAdvance.Delay(), r.resume(act, AwaitDelay, func() {
		r.finish(act, g, node)
	}))
}

func (r *Runner) selectOption(act uint64, g *narrative.Graph, node *narrative.Node, index int) {
	r.mu.Lock()
	if r.activation != act || r.awaiting != AwaitChoice {
		r.mu.Unlock()
		return
	}
	if index < 0 || index >= len(node.Options) {
		r.mu.Unlock()
		emit("warning", "choice.invalid", "option index out of range", map[string]interface{}{
			"graph_id": g.ID,
			"node_id":  node.ID,
			"index":    index,
		})
		return
	}
	r.busy = false
	r.awaiting = AwaitNone
	r.mu.Unlock()

	opt := node.Options[index]
	emit("info", "choice.selected", "", map[string]interface{}{
		"graph_id":    g.ID,
		"node_id":     node.ID,
		"index":       index,
		"target":      opt.Target,
		"consequence": opt.Consequence,
	})
	r.advance(g.ID, node.ID, opt.Target)
}

func (r *Runner) handOff(act uint64, g *narrative.Graph, node *narrative.Node) {
	if !r.suspend(act, AwaitMiniGame) {
		return
	}

	h := world.Handoff{
		GraphID:          g.ID,
		CheckpointNodeID: g.GetCheckpoint(),
		ContinueNodeID:   node.Next,
	}
	r.world.ParkHandoff(h)

	fields := h.Fields()
	fields["node_id"] = node.ID
	fields["game_id"] = node.GameID
	emit("info", "minigame.entered", "", fields)

	r.scenes.EnterMiniGame(node.GameID)
}

func (r *Runner) endNode(act uint64, g *narrative.Graph, node *narrative.Node) {
	r.presenter.HideAll()

	r.mu.Lock()
	if r.activation != act {
		r.mu.Unlock()
		return
	}
	r.busy = false
	r.awaiting = AwaitNone
	resolver := r.outcome
	r.mu.Unlock()

	emit("info", "node.completed", "", map[string]interface{}{
		"graph_id": g.ID,
		"node_id":  node.ID,
	})

	if node.ResolveOutcome {
		if resolver == nil {
			emit("error", "runner.error", "no outcome resolver configured", map[string]interface{}{
				"graph_id": g.ID,
				"node_id":  node.ID,
			})
			r.flow.ReturnToMainMenu("no outcome resolver configured")
			return
		}
		if err := resolver.TriggerFinalEnding(); err != nil {
			emit("error", "runner.error", err.Error(), map[string]interface{}{
				"graph_id": g.ID,
				"node_id":  node.ID,
			})
		}
		return
	}

	r.world.UnlockEnding(node.ID)
	emit("info", "ending.reached", "", map[string]interface{}{
		"graph_id":  g.ID,
		"ending_id": node.ID,
	})
	r.flow.OnNarrativeSegmentCompleted()
}

// finish is the shared node-finished path for dialogue and visual beats.
func (r *Runner) finish(act uint64, g *narrative.Graph, node *narrative.Node) {
	r.mu.Lock()
	if r.activation != act {
		r.mu.Unlock()
		return
	}
	r.busy = false
	r.awaiting = AwaitNone
	r.mu.Unlock()

	emit("info", "node.completed", "", map[string]interface{}{
		"graph_id": g.ID,
		"node_id":  node.ID,
	})

	if node.Next != "" {
		r.advance(g.ID, node.ID, node.Next)
		return
	}

	emit("info", "segment.completed", "", map[string]interface{}{
		"graph_id": g.ID,
		"node_id":  node.ID,
	})
	r.flow.OnNarrativeSegmentCompleted()
}

// advance plays target. A dangling reference strands the player, so it is
// sent to the main menu.
func (r *Runner) advance(graphID, fromNodeID, target string) error {
	err := r.PlayFrom(target)
	if errors.Is(err, narrative.ErrNodeNotFound) {
		reason := fmt.Sprintf("node %s not found in graph %s", target, graphID)
		if fromNodeID != "" {
			reason = fmt.Sprintf("%s (from %s)", reason, fromNodeID)
		}
		r.flow.ReturnToMainMenu(reason)
	}
	return err
}

// suspend records the suspension point for an activation. It returns false
// when the activation has been superseded.
func (r *Runner) suspend(act uint64, state AwaitState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activation != act {
		return false
	}
	r.awaiting = state
	return true
}

// resume wraps a continuation so it runs at most once, and only while the
// activation is still parked on state.
func (r *Runner) resume(act uint64, state AwaitState, next func()) func() {
	return func() {
		r.mu.Lock()
		if r.activation != act || r.awaiting != state {
			r.mu.Unlock()
			return
		}
		r.awaiting = AwaitNone
		r.mu.Unlock()
		next()
	}
}

func (r *Runner) positionLocked() map[string]interface{} {
	fields := map[string]interface{}{"awaiting": string(r.awaiting)}
	if r.graph != nil {
		fields["graph_id"] = r.graph.ID
	}
	if r.node != nil {
		fields["node_id"] = r.node.ID
	}
	return fields
}

func emit(level, name, msg string, fields map[string]interface{}) {
	events.Emit(level, name, msg, fields)
}

// resolveEvent names the event for a failed graph lookup: a missing graph
// or one that exists but does not parse or validate.
func resolveEvent(err error) string {
	if errors.Is(err, narrative.ErrNotFound) {
		return "graph.not_found"
	}
	return "graph.invalid"
}

// rejectWhileProcessing returns ErrBusy, and logs the rejection, when p is
// mid-node. Callers check before any side effect.
func rejectWhileProcessing(p GraphPlayer, msg string) error {
	st := p.Status()
	if !st.Processing() {
		return nil
	}
	emit("warning", "runner.rejected", msg, map[string]interface{}{
		"graph_id": st.GraphID,
		"node_id":  st.NodeID,
		"awaiting": string(st.Awaiting),
	})
	return ErrBusy
}
