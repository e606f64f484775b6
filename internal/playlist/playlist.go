// Package playlist holds the ordered track list and decides what plays next
// under each playlist mode.
package playlist

import (
	"strings"

	"github.com/google/uuid"
)

// Track is a playable location with an identity stable for the session.
type Track struct {
	ID       uuid.UUID
	Location string
}

// NewTrack returns a track for location with a fresh identity.
func NewTrack(location string) Track {
	return Track{ID: uuid.New(), Location: location}
}

// IsURL reports whether the location is remote.
func (t Track) IsURL() bool {
	return strings.Contains(t.Location, "://")
}

// Playlist holds an ordered collection of tracks.
type Playlist struct {
	tracks []Track
}

// NewPlaylist creates a new empty playlist.
func NewPlaylist() *Playlist {
	return &Playlist{
		tracks: make([]Track, 0),
	}
}

// Add appends tracks to the playlist.
func (p *Playlist) Add(tracks ...Track) {
	p.tracks = append(p.tracks, tracks...)
}

// Clear removes all tracks from the playlist.
func (p *Playlist) Clear() {
	p.tracks = p.tracks[:0]
}

// Tracks returns a copy of all tracks.
func (p *Playlist) Tracks() []Track {
	result := make([]Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}

// Track returns the track at the given index, or nil if out of bounds.
func (p *Playlist) Track(index int) *Track {
	if index < 0 || index >= len(p.tracks) {
		return nil
	}
	return &p.tracks[index]
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}
