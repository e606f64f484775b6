package playback

import (
	"time"

	"github.com/llehouerou/wavepost/internal/decoder"
	"github.com/llehouerou/wavepost/internal/playlist"
)

// Session is the live playback session. Only the control loop touches it;
// everyone else reads Snapshots.
type Session struct {
	Track       *playlist.Track
	Index       int
	State       State
	Base        time.Duration
	Duration    time.Duration
	HasDuration bool
	Volume      float64
	Mode        playlist.Mode
	Metadata    decoder.Metadata
}

// Snapshot is an immutable copy of the session at one instant.
type Snapshot struct {
	State       State
	Track       *playlist.Track
	Index       int
	Metadata    decoder.Metadata
	Position    time.Duration
	Duration    time.Duration
	HasDuration bool
	Volume      float64
	Mode        playlist.Mode
	Underruns   uint64
}

// Playing reports whether audio is being delivered.
func (s *Snapshot) Playing() bool {
	return s.State == StatePlaying
}

func (s *Session) snapshot(position time.Duration, underruns uint64) *Snapshot {
	snap := &Snapshot{
		State:       s.State,
		Index:       s.Index,
		Metadata:    s.Metadata,
		Position:    position,
		Duration:    s.Duration,
		HasDuration: s.HasDuration,
		Volume:      s.Volume,
		Mode:        s.Mode,
		Underruns:   underruns,
	}
	if s.Track != nil {
		t := *s.Track
		snap.Track = &t
	}
	return snap
}
