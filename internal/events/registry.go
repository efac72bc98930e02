package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// graph
	"graph.loaded":    {},
	"graph.not_found": {},
	"graph.invalid":   {},

	// node
	"node.started":   {},
	"node.completed": {},
	"node.not_found": {},

	// runner
	"runner.rejected": {},
	"runner.error":    {},

	// choice
	"choice.presented": {},
	"choice.selected":  {},
	"choice.invalid":   {},

	// minigame
	"minigame.entered":       {},
	"minigame.finished":      {},
	"minigame.resume_failed": {},
	"minigame.registered":    {},
	"minigame.host_lost":     {},
	"minigame.error":         {},

	// ending
	"ending.selected": {},
	"ending.fallback": {},
	"ending.unlocked": {},
	"ending.reached":  {},

	// flow
	"segment.completed": {},
	"chapter.started":   {},
	"story.completed":   {},
	"story.reset":       {},
	"flow.main_menu":    {},

	// world
	"danger.increased":         {},
	"danger.unknown_character": {},
	"flags.cleared":            {},

	// presentation
	"presenter.visuals":  {},
	"presenter.line":     {},
	"presenter.choices":  {},
	"presenter.zoom":     {},
	"presenter.continue": {},
	"presenter.hide":     {},
	"audio.cue":          {},

	// operator
	"operator.play":   {},
	"operator.danger": {},
	"operator.ending": {},
	"operator.reset":  {},

	// system
	"system.startup":         {},
	"system.shutdown":        {},
	"system.error":           {},
	"system.startup_restore": {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
