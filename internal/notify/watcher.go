package notify

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/llehouerou/wavepost/internal/bus"
	"github.com/llehouerou/wavepost/internal/errmsg"
	"github.com/llehouerou/wavepost/internal/message"
	"github.com/llehouerou/wavepost/internal/mpris"
	"github.com/llehouerou/wavepost/internal/playback"
)

// Watcher turns bus notifications into desktop notifications: one when a
// track starts playing, replacing the previous one, and one per error.
type Watcher struct {
	bus      *message.Bus
	notifier Notifier
	opts     Options
	log      zerolog.Logger
	sub      *bus.Subscription[message.Event]
	handle   bus.Handle
	lastID   uint32
}

// NewWatcher subscribes to b's notifications. Run delivers them.
func NewWatcher(b *message.Bus, n Notifier, opts Options, log zerolog.Logger) *Watcher {
	w := &Watcher{
		bus:      b,
		notifier: n,
		opts:     opts,
		log:      log.With().Str("component", "notify").Logger(),
	}
	w.handle, w.sub = b.Subscribe(bus.WithChannels(bus.Notifications))
	return w
}

// Run posts notifications until ctx ends or the bus closes.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.bus.Unsubscribe(w.handle)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.sub.Done:
			return nil
		case ev := <-w.sub.C:
			w.handleEvent(ev)
		}
	}
}

func (w *Watcher) handleEvent(ev message.Event) {
	switch ev := ev.(type) {
	case message.StateChanged:
		// Loading to Playing is the moment tags are known.
		if ev.Track == nil ||
			ev.Previous != playback.StateLoading.String() ||
			ev.Current != playback.StatePlaying.String() {
			return
		}
		id, err := w.notifier.Notify(w.trackNotification(ev.Track))
		if err != nil {
			w.log.Debug().Err(err).Msg("track notification")
			return
		}
		w.lastID = id
	case message.ErrorOccurred:
		category := CategoryError
		if ev.Op == string(errmsg.OpDeviceOutput) {
			category = CategoryDeviceError
		}
		if _, err := w.notifier.Notify(Notification{
			Summary:  "Playback error",
			Body:     ev.Message,
			Category: category,
			Timeout:  w.opts.ErrorTimeout,
			Urgency:  UrgencyCritical,
		}); err != nil {
			w.log.Debug().Err(err).Msg("error notification")
		}
	}
}

func (w *Watcher) trackNotification(t *message.TrackInfo) Notification {
	var parts []string
	if t.Artist != "" {
		parts = append(parts, t.Artist)
	}
	if t.Album != "" {
		parts = append(parts, t.Album)
	}
	icon := mpris.FindAlbumArt(t.Location)
	if icon == "" {
		icon = w.opts.Icon
	}
	return Notification{
		Summary:    t.Title,
		Body:       strings.Join(parts, " - "),
		Icon:       icon,
		Category:   CategoryTrack,
		Timeout:    w.opts.TrackTimeout,
		ReplacesID: w.lastID,
		Urgency:    UrgencyLow,
	}
}
