package playback

import (
	"github.com/llehouerou/wavepost/internal/analyzer"
)

// Service is the read side of the controller. Both methods return
// immutable values and never block on the control loop.
type Service interface {
	// Snapshot returns the latest session snapshot. It is never nil.
	Snapshot() *Snapshot
	// Waveform returns the latest analysis frame.
	Waveform() analyzer.Frame
}

// Verify Controller implements Service at compile time.
var _ Service = (*Controller)(nil)
