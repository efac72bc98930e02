package orchestrator

import (
	"fmt"

	"github.com/AaronLay10/SentientNarrative/internal/narrative"
	"github.com/AaronLay10/SentientNarrative/internal/world"
)

// HighDangerThreshold is the danger level at which a character counts
// towards the darker endings.
const HighDangerThreshold = 4

const (
	EndingImmortality = "Ending_Immortality"
	EndingPain        = "Ending_Pain"
	EndingHappiness   = "Ending_Happiness"
)

// DefaultEndingPrefix is prepended to an ending id to form its graph id.
const DefaultEndingPrefix = "NarrativeGraphs/"

// Ending is a terminal ending and the music track that accompanies it.
type Ending struct {
	ID       string
	MusicCue int
}

// SelectEnding maps the number of high-danger characters to an ending.
//
//	5+   -> Ending_Immortality, track 1
//	4    -> Ending_Pain, track 3
//	0..3 -> Ending_Happiness, track 2
func SelectEnding(highCount int) Ending {
	switch {
	case highCount >= 5:
		return Ending{ID: EndingImmortality, MusicCue: 1}
	case highCount > 3:
		return Ending{ID: EndingPain, MusicCue: 3}
	default:
		return Ending{ID: EndingHappiness, MusicCue: 2}
	}
}

// CueFor returns the table cue of a known ending id.
func CueFor(endingID string) (int, bool) {
	switch endingID {
	case EndingImmortality:
		return 1, true
	case EndingPain:
		return 3, true
	case EndingHappiness:
		return 2, true
	}
	return 0, false
}

// OutcomeConfig wires an OutcomeSelector.
type OutcomeConfig struct {
	World  *world.State
	Store  narrative.Store
	Audio  AudioCue
	Player GraphPlayer
	Flow   FlowController
	// EndingPrefix defaults to DefaultEndingPrefix.
	EndingPrefix string
}

// OutcomeSelector turns the accumulated world state into a final ending and
// starts its graph.
type OutcomeSelector struct {
	world  *world.State
	store  narrative.Store
	audio  AudioCue
	player GraphPlayer
	flow   FlowController
	prefix string
}

// NewOutcomeSelector creates a selector.
func NewOutcomeSelector(cfg OutcomeConfig) *OutcomeSelector {
	prefix := cfg.EndingPrefix
	if prefix == "" {
		prefix = DefaultEndingPrefix
	}
	return &OutcomeSelector{
		world:  cfg.World,
		store:  cfg.Store,
		audio:  cfg.Audio,
		player: cfg.Player,
		flow:   cfg.Flow,
		prefix: prefix,
	}
}

// Select evaluates the outcome policy against the current world state.
func (o *OutcomeSelector) Select() Ending {
	return SelectEnding(o.world.CountAtLeast(HighDangerThreshold))
}

// TriggerFinalEnding selects the ending, unlocks it, cues its music and plays
// its graph from the start.
func (o *OutcomeSelector) TriggerFinalEnding() error {
	if err := rejectWhileProcessing(o.player, "final ending while busy"); err != nil {
		return err
	}
	high := o.world.CountAtLeast(HighDangerThreshold)
	ending := SelectEnding(high)
	emit("info", "ending.selected", "", map[string]interface{}{
		"ending_id":  ending.ID,
		"music_cue":  ending.MusicCue,
		"high_count": high,
	})
	return o.play(ending)
}

// TriggerEnding plays a specific ending, bypassing the policy. Unknown ids
// use the Ending_Happiness cue. Nothing is unlocked or cued while a node is
// being processed.
func (o *OutcomeSelector) TriggerEnding(endingID string) error {
	if err := rejectWhileProcessing(o.player, "ending while busy"); err != nil {
		return err
	}
	cue, ok := CueFor(endingID)
	if !ok {
		cue = 2
	}
	ending := Ending{ID: endingID, MusicCue: cue}
	emit("info", "ending.selected", "", map[string]interface{}{
		"ending_id": ending.ID,
		"music_cue": ending.MusicCue,
		"manual":    true,
	})
	return o.play(ending)
}

// GraphID returns the store id of an ending's graph.
func (o *OutcomeSelector) GraphID(endingID string) string {
	return o.prefix + endingID
}

func (o *OutcomeSelector) play(ending Ending) error {
	o.world.UnlockEnding(ending.ID)

	g, err := o.resolve(ending.ID)
	if err != nil {
		o.flow.ReturnToMainMenu(fmt.Sprintf("ending graph for %s not found", ending.ID))
		return err
	}

	if o.audio != nil {
		o.audio.PlayTrack(ending.MusicCue)
	}
	emit("info", "audio.cue", "", map[string]interface{}{
		"track":     ending.MusicCue,
		"ending_id": ending.ID,
	})

	if err := o.player.Load(g); err != nil {
		emit("error", "runner.error", err.Error(), map[string]interface{}{"graph_id": g.ID})
		return err
	}
	return o.player.PlayFrom(g.StartNodeID)
}

// resolve finds the ending graph, falling back to Ending_Happiness.
func (o *OutcomeSelector) resolve(endingID string) (*narrative.Graph, error) {
	id := o.GraphID(endingID)
	g, err := o.store.Resolve(id)
	if err == nil {
		return g, nil
	}
	emit("warning", resolveEvent(err), err.Error(), map[string]interface{}{
		"graph_id":  id,
		"ending_id": endingID,
	})

	fallbackID := o.GraphID(EndingHappiness)
	if fallbackID == id {
		return nil, err
	}
	g, ferr := o.store.Resolve(fallbackID)
	if ferr != nil {
		emit("error", resolveEvent(ferr), ferr.Error(), map[string]interface{}{
			"graph_id":  fallbackID,
			"ending_id": EndingHappiness,
		})
		return nil, fmt.Errorf("resolve ending %s: %w", endingID, ferr)
	}
	emit("warning", "ending.fallback", "", map[string]interface{}{
		"ending_id": endingID,
		"graph_id":  fallbackID,
	})
	return g, nil
}
