package narrative

import "fmt"

// ValidationResult contains the outcome of an authoring check.
// Errors make a graph unusable; warnings are left for the runner to surface.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) errorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *ValidationResult) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks the graph's structure.
// Dangling next/target references are warnings: they are reported as
// NotFound when the runner tries to play them.
func (g *Graph) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	if g.ID == "" {
		result.errorf("graph id is required")
	}
	if len(g.Nodes) == 0 {
		result.errorf("graph %s has no nodes", g.ID)
		return result
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			result.errorf("node with empty id")
			continue
		}
		if seen[n.ID] {
			result.errorf("duplicate node id: %s", n.ID)
		}
		seen[n.ID] = true
	}

	if g.StartNodeID == "" {
		result.errorf("graph %s: start node is required", g.ID)
	} else if !seen[g.StartNodeID] {
		result.errorf("graph %s: start node %s not found", g.ID, g.StartNodeID)
	}

	for _, n := range g.Nodes {
		switch n.Type {
		case NodeDialogue:
			if len(n.Lines) == 0 {
				result.errorf("node %s: dialogue has no lines", n.ID)
			}
		case NodeChoice:
			if len(n.Options) == 0 {
				result.errorf("node %s: choice has no options", n.ID)
			}
			if n.Next != "" {
				result.warnf("node %s: next is ignored on choice nodes", n.ID)
			}
			for i, opt := range n.Options {
				if opt.Target == "" {
					result.errorf("node %s: option %d has no target", n.ID, i)
				} else if !seen[opt.Target] {
					result.warnf("node %s: option %d targets unknown node %s", n.ID, i, opt.Target)
				}
			}
		case NodeMiniGame:
			if n.GameID == "" {
				result.errorf("node %s: minigame has no game_id", n.ID)
			}
		case NodeEnding, NodeVisualBeat:
		default:
			result.errorf("node %s: unknown type %q", n.ID, n.Type)
		}

		if n.Next != "" && n.Type != NodeChoice && !seen[n.Next] {
			result.warnf("node %s: next references unknown node %s", n.ID, n.Next)
		}
		if n.ZoomOnEnter != nil && n.ZoomOnEnter.Scale <= 0 {
			result.errorf("node %s: zoom scale must be positive", n.ID)
		}
		if n.AutoAdvance != nil && n.AutoAdvance.DelaySeconds < 0 {
			result.errorf("node %s: auto_advance delay must not be negative", n.ID)
		}
	}

	return result
}
