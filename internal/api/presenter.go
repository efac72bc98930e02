package api

import (
	"errors"
	"sync"
	"time"

	"github.com/AaronLay10/SentientNarrative/internal/events"
	"github.com/AaronLay10/SentientNarrative/internal/narrative"
	"github.com/AaronLay10/SentientNarrative/internal/orchestrator"
)

var (
	// ErrNothingPending is returned when input arrives while the presenter
	// is not waiting for it.
	ErrNothingPending = errors.New("presenter: nothing waiting for input")
	// ErrInvalidChoice is returned for an option index outside the shown choices.
	ErrInvalidChoice = errors.New("presenter: invalid choice index")
)

// Presenter waiting states.
const (
	WaitingNone     = ""
	WaitingLines    = "lines"
	WaitingChoice   = "choice"
	WaitingContinue = "continue"
	WaitingZoom     = "zoom"
)

// PresenterView is what a remote client needs to draw the current beat.
// Lines holds the lines revealed so far; Line is the index of the one on
// screen and LineCount the dialogue's length.
type PresenterView struct {
	Visuals   narrative.Visuals `json:"visuals"`
	Lines     []string          `json:"lines,omitempty"`
	Line      int               `json:"line"`
	LineCount int               `json:"line_count,omitempty"`
	Options   []string          `json:"options,omitempty"`
	Waiting   string            `json:"waiting"`
}

// RemotePresenter renders nodes for clients connected over HTTP and the
// event stream. Each beat is published as a presenter.* event; player input
// comes back through Continue and Select. Dialogue is revealed one line per
// Continue.
type RemotePresenter struct {
	mu       sync.Mutex
	clock    orchestrator.Clock
	visuals  narrative.Visuals
	lines    []string
	cursor   int
	options  []narrative.Option
	waiting  string
	onDone   func()
	onSelect func(int)
}

// NewRemotePresenter creates a presenter. A nil clock uses real timers for zooms.
func NewRemotePresenter(clock orchestrator.Clock) *RemotePresenter {
	if clock == nil {
		clock = orchestrator.RealClock()
	}
	return &RemotePresenter{clock: clock}
}

func (p *RemotePresenter) SetVisuals(v narrative.Visuals) {
	p.mu.Lock()
	p.visuals = v
	p.mu.Unlock()

	events.Emit("info", "presenter.visuals", "", map[string]interface{}{
		"background": v.Background,
		"characters": v.Characters,
	})
}

// ShowLines reveals the first line. onComplete runs once the player
// continues past the last one; an empty dialogue completes at once.
func (p *RemotePresenter) ShowLines(lines []string, onComplete func()) {
	if len(lines) == 0 {
		p.mu.Lock()
		p.lines = nil
		p.cursor = 0
		p.mu.Unlock()
		onComplete()
		return
	}

	p.mu.Lock()
	p.lines = append([]string(nil), lines...)
	p.cursor = 0
	p.options = nil
	p.waiting = WaitingLines
	p.onDone = onComplete
	p.onSelect = nil
	p.mu.Unlock()

	emitLine(lines, 0)
}

func (p *RemotePresenter) ShowChoices(options []narrative.Option, onSelect func(index int)) {
	p.mu.Lock()
	p.options = append([]narrative.Option(nil), options...)
	p.waiting = WaitingChoice
	p.onDone = nil
	p.onSelect = onSelect
	p.mu.Unlock()

	events.Emit("info", "presenter.choices", "", map[string]interface{}{
		"options": optionTexts(options),
	})
}

// ZoomIn publishes the zoom and completes it after duration on the clock.
// Clients animate on their own; the walk does not wait for them.
func (p *RemotePresenter) ZoomIn(duration time.Duration, scale float64, onComplete func()) {
	p.mu.Lock()
	p.waiting = WaitingZoom
	p.mu.Unlock()

	events.Emit("info", "presenter.zoom", "", map[string]interface{}{
		"duration_ms": duration.Milliseconds(),
		"scale":       scale,
	})

	p.clock.AfterFunc(duration, func() {
		p.mu.Lock()
		if p.waiting == WaitingZoom {
			p.waiting = WaitingNone
		}
		p.mu.Unlock()
		onComplete()
	})
}

func (p *RemotePresenter) WaitForContinue(onComplete func()) {
	p.mu.Lock()
	p.waiting = WaitingContinue
	p.onDone = onComplete
	p.onSelect = nil
	p.mu.Unlock()

	events.Emit("info", "presenter.continue", "", nil)
}

func (p *RemotePresenter) HideAll() {
	p.mu.Lock()
	p.lines = nil
	p.cursor = 0
	p.options = nil
	p.waiting = WaitingNone
	p.onDone = nil
	p.onSelect = nil
	p.mu.Unlock()

	events.Emit("info", "presenter.hide", "", nil)
}

// Continue answers the prompt currently shown: it reveals the next line of
// a dialogue, or completes the dialogue after its last line or a continue
// prompt.
func (p *RemotePresenter) Continue() error {
	p.mu.Lock()
	if p.waiting != WaitingLines && p.waiting != WaitingContinue {
		p.mu.Unlock()
		return ErrNothingPending
	}
	if p.waiting == WaitingLines && p.cursor+1 < len(p.lines) {
		p.cursor++
		lines, cursor := p.lines, p.cursor
		p.mu.Unlock()
		emitLine(lines, cursor)
		return nil
	}
	done := p.onDone
	p.waiting = WaitingNone
	p.onDone = nil
	p.mu.Unlock()

	if done != nil {
		done()
	}
	return nil
}

// Select picks an option of the choice currently shown. An out-of-range
// index is rejected and the choice stays open.
func (p *RemotePresenter) Select(index int) error {
	p.mu.Lock()
	if p.waiting != WaitingChoice {
		p.mu.Unlock()
		return ErrNothingPending
	}
	if index < 0 || index >= len(p.options) {
		p.mu.Unlock()
		return ErrInvalidChoice
	}
	onSelect := p.onSelect
	p.waiting = WaitingNone
	p.onSelect = nil
	p.mu.Unlock()

	if onSelect != nil {
		onSelect(index)
	}
	return nil
}

// View returns the current beat.
func (p *RemotePresenter) View() PresenterView {
	p.mu.Lock()
	defer p.mu.Unlock()
	view := PresenterView{
		Visuals: p.visuals,
		Options: optionTexts(p.options),
		Waiting: p.waiting,
	}
	if len(p.lines) > 0 {
		view.Lines = append([]string(nil), p.lines[:p.cursor+1]...)
		view.Line = p.cursor
		view.LineCount = len(p.lines)
	}
	return view
}

func emitLine(lines []string, i int) {
	events.Emit("info", "presenter.line", lines[i], map[string]interface{}{
		"index": i,
		"count": len(lines),
	})
}

func optionTexts(options []narrative.Option) []string {
	if len(options) == 0 {
		return nil
	}
	texts := make([]string, len(options))
	for i, o := range options {
		texts[i] = o.Text
	}
	return texts
}
