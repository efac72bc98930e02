package orchestrator

// AwaitState names the suspension point a runner is parked on.
type AwaitState string

const (
	AwaitNone     AwaitState = "none"
	AwaitZoom     AwaitState = "zoom"
	AwaitLines    AwaitState = "lines"
	AwaitDelay    AwaitState = "auto_advance"
	AwaitChoice   AwaitState = "choice"
	AwaitContinue AwaitState = "continue"
	AwaitMiniGame AwaitState = "minigame"
)

// Status is a point-in-time view of a runner.
type Status struct {
	GraphID  string     `json:"graph_id,omitempty"`
	NodeID   string     `json:"node_id,omitempty"`
	Busy     bool       `json:"busy"`
	Awaiting AwaitState `json:"awaiting"`
}

// Parked reports whether the walk has been handed to a minigame.
func (s Status) Parked() bool {
	return s.Busy && s.Awaiting == AwaitMiniGame
}

// Processing reports whether a node is mid-flight. A walk parked on a
// minigame is not processing and may be replaced.
func (s Status) Processing() bool {
	return s.Busy && s.Awaiting != AwaitMiniGame
}
