// Package control holds the pause gate shared by the frontier, the worker
// pool and the checkpointer.
package control

// Event represents events that are handled by the control package.
type Event int

const (
	// PauseEvent is sent when the gate is closed.
	PauseEvent Event = iota
	// ResumeEvent is sent when the gate is opened again.
	ResumeEvent
)

func (e Event) String() string {
	if e == PauseEvent {
		return "pause"
	}
	return "resume"
}
