package mpris

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quarckster/go-mpris-server/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/wavepost/internal/analyzer"
	"github.com/llehouerou/wavepost/internal/bus"
	"github.com/llehouerou/wavepost/internal/decoder"
	"github.com/llehouerou/wavepost/internal/message"
	"github.com/llehouerou/wavepost/internal/playback"
	"github.com/llehouerou/wavepost/internal/playlist"
)

type fakePlayer struct {
	snap playback.Snapshot
}

func (f *fakePlayer) Snapshot() *playback.Snapshot { return &f.snap }
func (f *fakePlayer) Waveform() analyzer.Frame     { return analyzer.Frame{} }

func newAdapter(t *testing.T, snap playback.Snapshot) (*playerAdapter, *bus.Subscription[message.Event]) {
	t.Helper()
	b := bus.New[message.Event]()
	t.Cleanup(b.Close)
	_, sub := b.Subscribe(bus.WithChannels(bus.Commands))
	return &playerAdapter{bus: b, player: &fakePlayer{snap: snap}}, sub
}

func next(t *testing.T, sub *bus.Subscription[message.Event]) message.Event {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	default:
		t.Fatal("no command published")
		return nil
	}
}

func TestPlayerAdapter_Controls(t *testing.T) {
	tests := []struct {
		name string
		call func(p *playerAdapter) error
		want message.Command
	}{
		{"Play", (*playerAdapter).Play, message.PlayCurrent{}},
		{"Pause", (*playerAdapter).Pause, message.PauseCurrent{}},
		{"Stop", (*playerAdapter).Stop, message.StopCurrent{}},
		{"Next", (*playerAdapter).Next, message.MediaControlSkipForward{}},
		{"Previous", (*playerAdapter).Previous, message.MediaControlSkipBack{}},
		{"PlayPause while paused", (*playerAdapter).PlayPause, message.PlayCurrent{}},
		{
			"SetPosition",
			func(p *playerAdapter) error { return p.SetPosition("", 2_500_000) },
			message.SeekCurrent{Position: 2.5},
		},
		{
			"Seek relative",
			func(p *playerAdapter) error { return p.Seek(-10_000_000) },
			message.SeekCurrent{Position: 20},
		},
		{
			"SetVolume clamps",
			func(p *playerAdapter) error { return p.SetVolume(1.7) },
			message.SetVolume{Volume: 1},
		},
		{
			"OpenUri",
			func(p *playerAdapter) error { return p.OpenUri("file:///music/a%20b.flac") },
			message.LoadLocations{Locations: []string{"/music/a b.flac"}},
		},
		{
			"SetLoopStatus track",
			func(p *playerAdapter) error { return p.SetLoopStatus(types.LoopStatusTrack) },
			message.MediaControlPlaylistMode{Mode: playlist.RepeatOne},
		},
		{
			"SetShuffle on",
			func(p *playerAdapter) error { return p.SetShuffle(true) },
			message.MediaControlPlaylistMode{Mode: playlist.Shuffle},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, sub := newAdapter(t, playback.Snapshot{
				State:    playback.StatePaused,
				Position: 30 * time.Second,
			})
			require.NoError(t, tt.call(p))
			assert.Equal(t, tt.want, next(t, sub))
		})
	}
}

func TestPlayerAdapter_PlayPauseWhilePlaying(t *testing.T) {
	p, sub := newAdapter(t, playback.Snapshot{State: playback.StatePlaying})

	require.NoError(t, p.PlayPause())

	assert.Equal(t, message.PauseCurrent{}, next(t, sub))
}

func TestPlayerAdapter_SeekBeforeStartClamps(t *testing.T) {
	p, sub := newAdapter(t, playback.Snapshot{State: playback.StatePlaying, Position: 3 * time.Second})

	require.NoError(t, p.Seek(-10_000_000))

	assert.Equal(t, message.SeekCurrent{Position: 0}, next(t, sub))
}

func TestPlayerAdapter_ShuffleOffRestoresNormal(t *testing.T) {
	p, sub := newAdapter(t, playback.Snapshot{Mode: playlist.Shuffle})

	require.NoError(t, p.SetLoopStatus(types.LoopStatusNone))
	assert.Empty(t, sub.C, "loop none keeps shuffle")

	require.NoError(t, p.SetShuffle(false))
	assert.Equal(t, message.MediaControlPlaylistMode{Mode: playlist.Normal}, next(t, sub))
}

func TestPlayerAdapter_Properties(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "song.flac")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Folder.JPG"), []byte("img"), 0o644))

	id := uuid.New()
	p, _ := newAdapter(t, playback.Snapshot{
		State:       playback.StatePlaying,
		Track:       &playlist.Track{ID: id, Location: track},
		Index:       0,
		Metadata:    decoder.Metadata{Title: "Song", Artist: "Band", Album: "Record"},
		Position:    1500 * time.Millisecond,
		Duration:    time.Minute,
		HasDuration: true,
		Volume:      0.6,
		Mode:        playlist.RepeatAll,
	})

	status, _ := p.PlaybackStatus()
	assert.Equal(t, types.PlaybackStatusPlaying, status)
	pos, _ := p.Position()
	assert.Equal(t, int64(1_500_000), pos)
	vol, _ := p.Volume()
	assert.InDelta(t, 0.6, vol, 0)
	loop, _ := p.LoopStatus()
	assert.Equal(t, types.LoopStatusPlaylist, loop)
	shuffle, _ := p.Shuffle()
	assert.False(t, shuffle)
	canSeek, _ := p.CanSeek()
	assert.True(t, canSeek)

	meta, err := p.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Song", meta.Title)
	assert.Equal(t, []string{"Band"}, meta.Artist)
	assert.Equal(t, "Record", meta.Album)
	assert.Equal(t, types.Microseconds(60_000_000), meta.Length)
	assert.Equal(t, "file://"+filepath.Join(dir, "Folder.JPG"), meta.ArtUrl)
	assert.Equal(t, formatTrackID(id.String()), string(meta.TrackId))
}

func TestPlayerAdapter_IdleProperties(t *testing.T) {
	p, _ := newAdapter(t, playback.Snapshot{State: playback.StateIdle, Index: -1})

	status, _ := p.PlaybackStatus()
	assert.Equal(t, types.PlaybackStatusStopped, status)
	meta, err := p.Metadata()
	require.NoError(t, err)
	assert.Empty(t, meta.Title)
	canPlay, _ := p.CanPlay()
	assert.False(t, canPlay)
}

func TestRootAdapter_QuitPublishes(t *testing.T) {
	b := bus.New[message.Event]()
	defer b.Close()
	_, sub := b.Subscribe()
	r := &rootAdapter{bus: b}

	require.NoError(t, r.Quit())

	assert.Equal(t, message.Quit{}, next(t, sub))
}

func TestFindAlbumArt(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "a.mp3")

	assert.Empty(t, FindAlbumArt(track))
	assert.Empty(t, FindAlbumArt("http://example.com/a.mp3"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "front.png"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "cover.jpg"), FindAlbumArt(track))
}
