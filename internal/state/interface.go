// internal/state/interface.go
package state

import "github.com/llehouerou/wavepost/internal/playlist"

// Interface defines the preference store contract for dependency injection and testing.
type Interface interface {
	GetVolume() (float64, bool, error)
	SaveVolume(volume float64)
	GetPlaylistMode() (playlist.Mode, bool, error)
	SavePlaylistMode(mode playlist.Mode)
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
