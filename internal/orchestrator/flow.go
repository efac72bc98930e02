package orchestrator

import (
	"fmt"
	"sync"

	"github.com/AaronLay10/SentientNarrative/internal/narrative"
	"github.com/AaronLay10/SentientNarrative/internal/world"
)

// ChapterFlowConfig wires a ChapterFlow.
type ChapterFlowConfig struct {
	Store    narrative.Store
	World    *world.State
	Chapters []string
	// ResolveOutcome triggers the final ending when the last chapter completes.
	ResolveOutcome bool
	// OnMainMenu is called after every return to the main menu.
	OnMainMenu func(reason string)
}

// ChapterFlow is the FlowController that walks a fixed list of chapter
// graphs, then hands over to the outcome resolver.
type ChapterFlow struct {
	store          narrative.Store
	world          *world.State
	chapters       []string
	resolveOutcome bool
	onMainMenu     func(reason string)

	mu      sync.Mutex
	player  GraphPlayer
	outcome OutcomeResolver
	inMenu  bool
	reason  string
}

// NewChapterFlow creates a flow controller. Attach must be called before Start.
func NewChapterFlow(cfg ChapterFlowConfig) *ChapterFlow {
	return &ChapterFlow{
		store:          cfg.Store,
		world:          cfg.World,
		chapters:       append([]string{}, cfg.Chapters...),
		resolveOutcome: cfg.ResolveOutcome,
		onMainMenu:     cfg.OnMainMenu,
		inMenu:         true,
	}
}

// Attach sets the runner and outcome resolver the flow drives.
func (f *ChapterFlow) Attach(player GraphPlayer, outcome OutcomeResolver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.player = player
	f.outcome = outcome
}

// Chapters returns the configured chapter graph ids.
func (f *ChapterFlow) Chapters() []string {
	return append([]string{}, f.chapters...)
}

// InMainMenu reports whether the flow is sitting in the main menu, and why.
func (f *ChapterFlow) InMainMenu() (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inMenu, f.reason
}

// Start plays the first chapter.
func (f *ChapterFlow) Start() error {
	return f.StartChapter(0)
}

// StartChapter loads chapter i and plays it from its start node.
func (f *ChapterFlow) StartChapter(i int) error {
	if i < 0 || i >= len(f.chapters) {
		return fmt.Errorf("chapter %d out of range (have %d)", i, len(f.chapters))
	}

	f.mu.Lock()
	player := f.player
	f.mu.Unlock()
	if player == nil {
		return fmt.Errorf("chapter flow has no runner attached")
	}

	id := f.chapters[i]
	g, err := f.store.Resolve(id)
	if err != nil {
		emit("error", resolveEvent(err), err.Error(), map[string]interface{}{"graph_id": id})
		f.ReturnToMainMenu(fmt.Sprintf("chapter %s not found", id))
		return err
	}
	if err := player.Load(g); err != nil {
		return err
	}

	f.mu.Lock()
	f.inMenu = false
	f.reason = ""
	f.mu.Unlock()

	emit("info", "chapter.started", "", map[string]interface{}{
		"graph_id": g.ID,
		"index":    i,
	})
	return player.PlayFrom(g.StartNodeID)
}

// Restart resets danger and flags, keeps unlocked endings, and plays the
// first chapter again. It is rejected with ErrBusy, leaving the world
// untouched, while a node is being processed.
func (f *ChapterFlow) Restart() error {
	f.mu.Lock()
	player := f.player
	f.mu.Unlock()
	if player == nil {
		return fmt.Errorf("chapter flow has no runner attached")
	}
	if err := rejectWhileProcessing(player, "restart while busy"); err != nil {
		return err
	}

	if f.world != nil {
		snap := f.world.Snapshot()
		f.world.Restore(world.Snapshot{Unlocked: snap.Unlocked})
	}
	emit("info", "story.reset", "", nil)
	return f.Start()
}

// OnNarrativeSegmentCompleted advances to the chapter after the one that
// just finished. A segment outside the chapter list is an ending graph and
// completes the story.
func (f *ChapterFlow) OnNarrativeSegmentCompleted() {
	f.mu.Lock()
	player := f.player
	outcome := f.outcome
	f.mu.Unlock()
	if player == nil {
		return
	}

	graphID := player.Status().GraphID
	idx := f.indexOf(graphID)

	switch {
	case idx < 0:
		emit("info", "story.completed", "", map[string]interface{}{"graph_id": graphID})
		f.ReturnToMainMenu("story completed")

	case idx == len(f.chapters)-1:
		if f.resolveOutcome && outcome != nil {
			if err := outcome.TriggerFinalEnding(); err != nil {
				emit("error", "runner.error", err.Error(), map[string]interface{}{"graph_id": graphID})
			}
			return
		}
		emit("info", "story.completed", "", map[string]interface{}{"graph_id": graphID})
		f.ReturnToMainMenu("story completed")

	default:
		_ = f.StartChapter(idx + 1)
	}
}

// ReturnToMainMenu records the navigation and notifies OnMainMenu.
func (f *ChapterFlow) ReturnToMainMenu(reason string) {
	f.mu.Lock()
	f.inMenu = true
	f.reason = reason
	cb := f.onMainMenu
	f.mu.Unlock()

	emit("info", "flow.main_menu", reason, map[string]interface{}{"reason": reason})
	if cb != nil {
		cb(reason)
	}
}

func (f *ChapterFlow) indexOf(graphID string) int {
	for i, id := range f.chapters {
		if id == graphID {
			return i
		}
	}
	return -1
}
