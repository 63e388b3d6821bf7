package video

// State is the lifecycle position of a Stream.
type State int

// Stream states. Finished is terminal.
const (
	StateConnecting State = iota
	StatePlaying
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Status text milestones.
const (
	StatusConnecting = "connecting"
	StatusConnected  = "connected"
	statusEnded      = "stream ended: "
)

// EndedStatus formats the final status text for reason.
func EndedStatus(reason string) string {
	return statusEnded + reason
}
