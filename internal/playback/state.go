// internal/playback/state.go
package playback

// State represents the playback state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateStopped
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateStopped:
		return "Stopped"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a track is attached to the device (playing or
// paused).
func (s State) IsActive() bool {
	return s == StatePlaying || s == StatePaused
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
