package orchestrator

import (
	"time"

	"github.com/AaronLay10/SentientNarrative/internal/narrative"
)

// Presenter renders nodes and reports player input back through callbacks.
// Callbacks may be invoked synchronously or from another goroutine.
type Presenter interface {
	SetVisuals(v narrative.Visuals)
	ShowLines(lines []string, onComplete func())
	ShowChoices(options []narrative.Option, onSelect func(index int))
	ZoomIn(duration time.Duration, scale float64, onComplete func())
	WaitForContinue(onComplete func())
	HideAll()
}

// SceneHost performs the scene transition into a minigame. The minigame's
// result comes back through Runner.OnMiniGameFinished.
type SceneHost interface {
	EnterMiniGame(gameID string)
}

// FlowController owns chapter progression and the main menu.
type FlowController interface {
	OnNarrativeSegmentCompleted()
	ReturnToMainMenu(reason string)
}

// AudioCue plays a music track. Fire-and-forget.
type AudioCue interface {
	PlayTrack(index int)
}

// OutcomeResolver picks and plays the final ending.
type OutcomeResolver interface {
	TriggerFinalEnding() error
}

// GraphPlayer is the part of the runner the chapter flow and the outcome
// selector drive.
type GraphPlayer interface {
	Load(g *narrative.Graph) error
	PlayFrom(nodeID string) error
	Status() Status
}

// Clock schedules bounded waits.
type Clock interface {
	AfterFunc(d time.Duration, f func())
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// RealClock returns a Clock backed by time.AfterFunc.
func RealClock() Clock {
	return realClock{}
}
