package mpris

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/llehouerou/wavepost/internal/message"
	"github.com/llehouerou/wavepost/internal/playback"
	"github.com/llehouerou/wavepost/internal/playlist"
)

// ErrUnsupported is returned by New where D-Bus is unavailable.
var ErrUnsupported = errors.New("mpris is not supported on this platform")

// busName is the MPRIS well-known name suffix.
const busName = "wavepost"

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct {
	bus *message.Bus
}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	r.bus.Publish(message.Quit{})
	return nil
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return true, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil // Track list interface not implemented
}

func (r *rootAdapter) Identity() (string, error) {
	return "Wavepost", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/ogg", "audio/wav", "audio/x-wav"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter and optional
// interfaces. Methods publish commands; getters read the latest snapshot.
type playerAdapter struct {
	bus    *message.Bus
	player playback.Service
}

func (p *playerAdapter) publish(cmd message.Command) error {
	p.bus.Publish(cmd)
	return nil
}

func (p *playerAdapter) Next() error {
	return p.publish(message.MediaControlSkipForward{})
}

func (p *playerAdapter) Previous() error {
	return p.publish(message.MediaControlSkipBack{})
}

func (p *playerAdapter) Pause() error {
	return p.publish(message.PauseCurrent{})
}

func (p *playerAdapter) PlayPause() error {
	if p.player.Snapshot().Playing() {
		return p.publish(message.PauseCurrent{})
	}
	return p.publish(message.PlayCurrent{})
}

func (p *playerAdapter) Stop() error {
	return p.publish(message.StopCurrent{})
}

func (p *playerAdapter) Play() error {
	return p.publish(message.PlayCurrent{})
}

// Seek moves relative to the current position.
func (p *playerAdapter) Seek(offset types.Microseconds) error {
	pos := p.player.Snapshot().Position + time.Duration(offset)*time.Microsecond
	return p.publish(message.SeekCurrent{Position: max(pos, 0).Seconds()})
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	if position < 0 {
		return nil
	}
	pos := time.Duration(position) * time.Microsecond
	return p.publish(message.SeekCurrent{Position: pos.Seconds()})
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(uri string) error {
	return p.publish(message.LoadLocations{Locations: []string{fileLocation(uri)}})
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.player.Snapshot().State {
	case playback.StatePlaying:
		return types.PlaybackStatusPlaying, nil
	case playback.StatePaused:
		return types.PlaybackStatusPaused, nil
	case playback.StateIdle, playback.StateLoading, playback.StateStopped, playback.StateError:
		return types.PlaybackStatusStopped, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	snap := p.player.Snapshot()
	if snap.Track == nil {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(snap.Track.ID.String())),
		Title:   snap.Metadata.Title,
		Album:   snap.Metadata.Album,
	}
	if snap.HasDuration {
		meta.Length = types.Microseconds(snap.Duration.Microseconds())
	}
	if snap.Metadata.Artist != "" {
		meta.Artist = []string{snap.Metadata.Artist}
	}
	if artPath := FindAlbumArt(snap.Track.Location); artPath != "" {
		meta.ArtUrl = "file://" + artPath
	}

	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return p.player.Snapshot().Volume, nil
}

func (p *playerAdapter) SetVolume(volume float64) error {
	return p.publish(message.SetVolume{Volume: min(max(volume, 0), 1)})
}

func (p *playerAdapter) Position() (int64, error) {
	return p.player.Snapshot().Position.Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.player.Snapshot().Track != nil, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.player.Snapshot().Track != nil, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.player.Snapshot().Index >= 0, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return p.player.Snapshot().State.IsActive(), nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	switch p.player.Snapshot().Mode {
	case playlist.RepeatOne:
		return types.LoopStatusTrack, nil
	case playlist.RepeatAll:
		return types.LoopStatusPlaylist, nil
	case playlist.Normal, playlist.Shuffle:
		return types.LoopStatusNone, nil
	}
	return types.LoopStatusNone, nil
}

// SetLoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	mode := playlist.Normal
	switch status {
	case types.LoopStatusNone:
		if p.player.Snapshot().Mode == playlist.Shuffle {
			return nil
		}
	case types.LoopStatusTrack:
		mode = playlist.RepeatOne
	case types.LoopStatusPlaylist:
		mode = playlist.RepeatAll
	}
	return p.publish(message.MediaControlPlaylistMode{Mode: mode})
}

// Shuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) Shuffle() (bool, error) {
	return p.player.Snapshot().Mode == playlist.Shuffle, nil
}

// SetShuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle. Modes
// are exclusive, so turning shuffle off returns to Normal.
func (p *playerAdapter) SetShuffle(shuffle bool) error {
	current := p.player.Snapshot().Mode
	switch {
	case shuffle && current != playlist.Shuffle:
		return p.publish(message.MediaControlPlaylistMode{Mode: playlist.Shuffle})
	case !shuffle && current == playlist.Shuffle:
		return p.publish(message.MediaControlPlaylistMode{Mode: playlist.Normal})
	}
	return nil
}

func formatTrackID(id string) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
