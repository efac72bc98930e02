package orchestrator

import (
	"sync"
	"time"

	"github.com/AaronLay10/SentientNarrative/internal/narrative"
	"github.com/AaronLay10/SentientNarrative/internal/world"
)

// mockPresenter records calls. With auto set, lines, zooms and continue
// prompts complete immediately; choices always wait for select.
type mockPresenter struct {
	mu   sync.Mutex
	auto bool

	visuals  []narrative.Visuals
	lines    [][]string
	zooms    []float64
	hides    int
	options  []narrative.Option
	onLines  func()
	onZoom   func()
	onCont   func()
	onSelect func(int)
}

func (p *mockPresenter) SetVisuals(v narrative.Visuals) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visuals = append(p.visuals, v)
}

func (p *mockPresenter) ShowLines(lines []string, onComplete func()) {
	p.mu.Lock()
	p.lines = append(p.lines, lines)
	p.onLines = onComplete
	auto := p.auto
	p.mu.Unlock()
	if auto {
		onComplete()
	}
}

func (p *mockPresenter) ShowChoices(options []narrative.Option, onSelect func(int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.options = options
	p.onSelect = onSelect
}

func (p *mockPresenter) ZoomIn(d time.Duration, scale float64, onComplete func()) {
	p.mu.Lock()
	p.zooms = append(p.zooms, scale)
	p.onZoom = onComplete
	auto := p.auto
	p.mu.Unlock()
	if auto {
		onComplete()
	}
}

func (p *mockPresenter) WaitForContinue(onComplete func()) {
	p.mu.Lock()
	p.onCont = onComplete
	auto := p.auto
	p.mu.Unlock()
	if auto {
		onComplete()
	}
}

func (p *mockPresenter) HideAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hides++
}

func (p *mockPresenter) completeLines() {
	p.mu.Lock()
	cb := p.onLines
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (p *mockPresenter) completeZoom() {
	p.mu.Lock()
	cb := p.onZoom
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (p *mockPresenter) pressContinue() {
	p.mu.Lock()
	cb := p.onCont
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (p *mockPresenter) choose(i int) {
	p.mu.Lock()
	cb := p.onSelect
	p.mu.Unlock()
	if cb != nil {
		cb(i)
	}
}

func (p *mockPresenter) lineCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lines)
}

type mockScenes struct {
	mu      sync.Mutex
	entered []string
}

func (s *mockScenes) EnterMiniGame(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entered = append(s.entered, gameID)
}

type mockFlow struct {
	mu        sync.Mutex
	completed int
	menus     []string
}

func (f *mockFlow) OnNarrativeSegmentCompleted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed++
}

func (f *mockFlow) ReturnToMainMenu(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menus = append(f.menus, reason)
}

type mockAudio struct {
	tracks []int
}

func (a *mockAudio) PlayTrack(index int) {
	a.tracks = append(a.tracks, index)
}

type mockResolver struct {
	calls int
	err   error
}

func (r *mockResolver) TriggerFinalEnding() error {
	r.calls++
	return r.err
}

// manualClock holds timers until fire is called.
type manualClock struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, f)
	c.delays = append(c.delays, d)
}

// fire runs every pending timer once.
func (c *manualClock) fire() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

type harness struct {
	store     *narrative.MemoryStore
	world     *world.State
	presenter *mockPresenter
	scenes    *mockScenes
	flow      *mockFlow
	clock     *manualClock
}

func newHarness(graphs ...*narrative.Graph) *harness {
	return &harness{
		store:     narrative.NewMemoryStore(graphs...),
		world:     world.New([]string{"Mara", "Otto", "Ines", "Bram", "Lio", "Wren"}),
		presenter: &mockPresenter{},
		scenes:    &mockScenes{},
		flow:      &mockFlow{},
		clock:     &manualClock{},
	}
}

func (h *harness) runner() *Runner {
	return NewRunner(RunnerConfig{
		Store:     h.store,
		World:     h.world,
		Presenter: h.presenter,
		Scenes:    h.scenes,
		Flow:      h.flow,
		Clock:     h.clock,
	})
}

func dialogue(id, next string, lines ...string) narrative.Node {
	return narrative.Node{ID: id, Type: narrative.NodeDialogue, Next: next, Lines: lines}
}
