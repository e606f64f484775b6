//go:build !linux

// Package mpris exposes the player on the session D-Bus as an MPRIS media
// player. It is only available on Linux.
package mpris

import (
	"github.com/rs/zerolog"

	"github.com/llehouerou/wavepost/internal/message"
	"github.com/llehouerou/wavepost/internal/playback"
)

// Adapter is a no-op on non-Linux platforms.
type Adapter struct{}

// New returns ErrUnsupported on non-Linux platforms.
func New(_ *message.Bus, _ playback.Service, _ zerolog.Logger) (*Adapter, error) {
	return nil, ErrUnsupported
}

// Close is a no-op on non-Linux platforms.
func (a *Adapter) Close() error {
	return nil
}
