// internal/state/mock.go
package state

import (
	"sync"

	"github.com/llehouerou/wavepost/internal/playlist"
)

// Mock is an in-memory test double for Manager. Saves apply immediately.
type Mock struct {
	mu     sync.Mutex
	volume *float64
	mode   *playlist.Mode
	closed bool
}

// NewMock creates a new mock preference store for testing.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) GetVolume() (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.volume == nil {
		return 0, false, nil
	}
	return *m.volume, true, nil
}

func (m *Mock) SaveVolume(volume float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = &volume
}

func (m *Mock) GetPlaylistMode() (playlist.Mode, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == nil {
		return playlist.Normal, false, nil
	}
	return *m.mode, true, nil
}

func (m *Mock) SavePlaylistMode(mode playlist.Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = &mode
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
