//go:build linux

// Package mpris exposes the player on the session D-Bus as an MPRIS media
// player.
package mpris

import (
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/rs/zerolog"

	"github.com/llehouerou/wavepost/internal/message"
	"github.com/llehouerou/wavepost/internal/playback"
)

// Adapter connects the bus and the controller snapshots to MPRIS over
// D-Bus.
type Adapter struct {
	server *server.Server
	log    zerolog.Logger
}

// New creates and starts a new MPRIS adapter. Control calls are published
// onto b; property reads come from player.
func New(b *message.Bus, player playback.Service, log zerolog.Logger) (*Adapter, error) {
	a := &Adapter{
		log: log.With().Str("component", "mpris").Logger(),
	}

	rootAdapter := &rootAdapter{bus: b}
	playerAdapter := &playerAdapter{bus: b, player: player}
	a.server = server.NewServer(busName, rootAdapter, playerAdapter)

	// Start the server in background
	go func() {
		if err := a.server.Listen(); err != nil {
			a.log.Warn().Err(err).Msg("mpris server stopped")
		}
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	return a.server.Stop()
}
