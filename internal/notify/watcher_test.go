package notify

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/wavepost/internal/bus"
	"github.com/llehouerou/wavepost/internal/message"
)

type recorder struct {
	mu   sync.Mutex
	sent []Notification
	fail bool
}

func (r *recorder) Notify(n Notification) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return 0, errors.New("no server")
	}
	r.sent = append(r.sent, n)
	return uint32(len(r.sent)) + 40, nil
}

func (r *recorder) Close(uint32) error { return nil }

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

func playing(track *message.TrackInfo) message.StateChanged {
	return message.StateChanged{Previous: "Loading", Current: "Playing", Track: track}
}

func TestWatcher_TrackStartReplacesPrevious(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), nil, 0o644))
	rec := &recorder{}
	w := &Watcher{notifier: rec, opts: DefaultOptions(), log: zerolog.Nop()}

	w.handleEvent(playing(&message.TrackInfo{
		Location: filepath.Join(dir, "01.flac"),
		Title:    "First",
		Artist:   "Band",
		Album:    "Record",
	}))
	w.handleEvent(playing(&message.TrackInfo{Location: "/elsewhere/02.flac", Title: "Second"}))

	sent := rec.all()
	require.Len(t, sent, 2)
	assert.Equal(t, "First", sent[0].Summary)
	assert.Equal(t, "Band - Record", sent[0].Body)
	assert.Equal(t, filepath.Join(dir, "cover.jpg"), sent[0].Icon)
	assert.Zero(t, sent[0].ReplacesID)
	assert.Equal(t, "Second", sent[1].Summary)
	assert.Empty(t, sent[1].Body)
	assert.Equal(t, "audio-x-generic", sent[1].Icon, "falls back to the configured icon")
	assert.Equal(t, uint32(41), sent[1].ReplacesID)
}

func TestWatcher_IgnoresOtherTransitions(t *testing.T) {
	rec := &recorder{}
	w := &Watcher{notifier: rec, opts: DefaultOptions(), log: zerolog.Nop()}
	track := &message.TrackInfo{Title: "Song"}

	w.handleEvent(message.StateChanged{Previous: "Paused", Current: "Playing", Track: track})
	w.handleEvent(message.StateChanged{Previous: "Idle", Current: "Loading", Track: track})
	w.handleEvent(playing(nil))
	w.handleEvent(message.VolumeChanged{Volume: 0.5})

	assert.Empty(t, rec.all())
}

func TestWatcher_ErrorIsCritical(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		category string
	}{
		{"load", "load track", CategoryError},
		{"decode", "decode track", CategoryError},
		{"device", "play audio", CategoryDeviceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			w := &Watcher{notifier: rec, opts: DefaultOptions(), log: zerolog.Nop()}

			w.handleEvent(message.ErrorOccurred{Op: tt.op, Message: "Failed: boom"})

			sent := rec.all()
			require.Len(t, sent, 1)
			assert.Equal(t, UrgencyCritical, sent[0].Urgency)
			assert.Equal(t, "Failed: boom", sent[0].Body)
			assert.Equal(t, tt.category, sent[0].Category)
			assert.Equal(t, time.Duration(-1), sent[0].Timeout)
		})
	}
}

func TestWatcher_UsesConfiguredOptions(t *testing.T) {
	rec := &recorder{}
	opts := Options{
		AppName:      "Custom",
		Icon:         "media-playback-start",
		TrackTimeout: 3 * time.Second,
		ErrorTimeout: 10 * time.Second,
	}
	w := &Watcher{notifier: rec, opts: opts, log: zerolog.Nop()}

	w.handleEvent(playing(&message.TrackInfo{Location: "/nowhere/a.flac", Title: "A"}))
	w.handleEvent(message.ErrorOccurred{Op: "load track", Message: "boom"})

	sent := rec.all()
	require.Len(t, sent, 2)
	assert.Equal(t, "media-playback-start", sent[0].Icon)
	assert.Equal(t, CategoryTrack, sent[0].Category)
	assert.Equal(t, 3*time.Second, sent[0].Timeout)
	assert.Equal(t, 10*time.Second, sent[1].Timeout)
}

func TestWatcher_NotifierFailureKeepsLastID(t *testing.T) {
	rec := &recorder{}
	w := &Watcher{notifier: rec, opts: DefaultOptions(), log: zerolog.Nop()}
	w.handleEvent(playing(&message.TrackInfo{Title: "One"}))
	rec.fail = true

	w.handleEvent(playing(&message.TrackInfo{Title: "Two"}))

	assert.Equal(t, uint32(41), w.lastID)
}

func TestWatcher_RunDeliversFromBus(t *testing.T) {
	b := bus.New[message.Event]()
	defer b.Close()
	rec := &recorder{}
	w := NewWatcher(b, rec, DefaultOptions(), zerolog.Nop())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	b.Publish(playing(&message.TrackInfo{Title: "Live"}))
	assert.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, b.Len())
}
