package narrative

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// NodeType identifies which variant payload a node carries.
type NodeType string

const (
	NodeDialogue   NodeType = "dialogue"
	NodeChoice     NodeType = "choice"
	NodeMiniGame   NodeType = "minigame"
	NodeEnding     NodeType = "ending"
	NodeVisualBeat NodeType = "visual_beat"
)

var (
	// ErrNotFound is returned when a graph id does not resolve.
	ErrNotFound = errors.New("narrative: graph not found")
	// ErrNodeNotFound is returned when a node id does not resolve in a graph.
	ErrNodeNotFound = errors.New("narrative: node not found")
)

// Graph is a named collection of narrative nodes with one entry point.
// Graphs are read-only after load.
type Graph struct {
	Version     int    `json:"version" yaml:"version"`
	ID          string `json:"id" yaml:"id"`
	StartNodeID string `json:"start" yaml:"start"`
	Nodes       []Node `json:"nodes" yaml:"nodes"`

	indexOnce sync.Once
	index     map[string]*Node
}

// Visuals is the background and character art shown with a node.
type Visuals struct {
	Background string   `json:"background,omitempty" yaml:"background,omitempty"`
	Characters []string `json:"characters,omitempty" yaml:"characters,omitempty"`
}

// AutoAdvance skips waiting for the player after the node's content is shown.
type AutoAdvance struct {
	DelaySeconds float64 `json:"delay" yaml:"delay"`
}

// Delay returns the configured wait before advancing.
func (a *AutoAdvance) Delay() time.Duration {
	return seconds(a.DelaySeconds)
}

// Zoom is a presentation step performed before the node's content appears.
type Zoom struct {
	DurationSeconds float64 `json:"duration" yaml:"duration"`
	Scale           float64 `json:"scale" yaml:"scale"`
}

// Duration returns the zoom animation length.
func (z *Zoom) Duration() time.Duration {
	return seconds(z.DurationSeconds)
}

// Option is one selectable answer on a choice node.
type Option struct {
	Text        string `json:"text" yaml:"text"`
	Target      string `json:"target" yaml:"target"`
	Consequence string `json:"consequence,omitempty" yaml:"consequence,omitempty"`
}

// Node is one narrative beat.
// Type selects the variant; only that variant's payload fields are meaningful.
type Node struct {
	ID          string       `json:"id" yaml:"id"`
	Type        NodeType     `json:"type" yaml:"type"`
	Next        string       `json:"next,omitempty" yaml:"next,omitempty"`
	Visuals     Visuals      `json:"visuals,omitempty" yaml:"visuals,omitempty"`
	AutoAdvance *AutoAdvance `json:"auto_advance,omitempty" yaml:"auto_advance,omitempty"`
	ZoomOnEnter *Zoom        `json:"zoom_on_enter,omitempty" yaml:"zoom_on_enter,omitempty"`

	// dialogue
	Lines []string `json:"lines,omitempty" yaml:"lines,omitempty"`
	// choice
	Options []Option `json:"options,omitempty" yaml:"options,omitempty"`
	// minigame
	GameID string `json:"game_id,omitempty" yaml:"game_id,omitempty"`
	// ending: true when reaching this node should pick the final ending from
	// world state instead of closing an already chosen ending graph.
	ResolveOutcome bool `json:"resolve_outcome,omitempty" yaml:"resolve_outcome,omitempty"`
}

// GetNode returns the node with the given id.
// The lookup index is built on first use and reused afterwards.
func (g *Graph) GetNode(id string) (*Node, error) {
	g.indexOnce.Do(g.buildIndex)
	if n, ok := g.index[id]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s in graph %s", ErrNodeNotFound, id, g.ID)
}

func (g *Graph) buildIndex() {
	g.index = make(map[string]*Node, len(g.Nodes))
	for i := range g.Nodes {
		// First definition wins; Validate reports duplicates.
		if _, exists := g.index[g.Nodes[i].ID]; !exists {
			g.index[g.Nodes[i].ID] = &g.Nodes[i]
		}
	}
}

// GetCheckpoint returns the node a failed minigame attempt resumes from.
// The current policy is always the graph's start node.
func (g *Graph) GetCheckpoint() string {
	return g.StartNodeID
}

// HasNode returns true if the node exists in the graph.
func (g *Graph) HasNode(id string) bool {
	_, err := g.GetNode(id)
	return err == nil
}

func seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
