// Package notify posts desktop notifications for track changes and
// playback errors.
package notify

import (
	"math"
	"time"
)

// Urgency is the freedesktop urgency hint.
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// Categories sent in the "category" hint. Servers use them to group and
// filter; device.error is a standard freedesktop category.
const (
	CategoryTrack       = "x-wavepost.track"
	CategoryError       = "x-wavepost.error"
	CategoryDeviceError = "device.error"
)

// Notification is one desktop notification.
type Notification struct {
	Summary  string
	Body     string
	Icon     string
	Category string
	Urgency  Urgency
	// Timeout below zero leaves expiry to the server; zero never expires.
	Timeout time.Duration
	// ReplacesID updates an earlier notification in place when non-zero.
	ReplacesID uint32
}

// Options identify the sender and set the expiry of each kind of
// notification.
type Options struct {
	AppName      string
	DesktopEntry string
	// Icon is shown for tracks without album art.
	Icon         string
	TrackTimeout time.Duration
	ErrorTimeout time.Duration
}

// DefaultOptions returns the stock identity and timeouts.
func DefaultOptions() Options {
	return Options{
		AppName:      "Wavepost",
		DesktopEntry: "wavepost",
		Icon:         "audio-x-generic",
		TrackTimeout: 5 * time.Second,
		ErrorTimeout: -1,
	}
}

// Notifier posts notifications. Notify returns the id assigned by the
// server, or zero when nothing was shown.
type Notifier interface {
	Notify(n Notification) (uint32, error)
	Close(id uint32) error
}

// discard is the Notifier used without a notification server.
type discard struct{}

func (discard) Notify(Notification) (uint32, error) { return 0, nil }
func (discard) Close(uint32) error                  { return nil }

// expireMillis converts a timeout to the expire_timeout argument.
func expireMillis(d time.Duration) int32 {
	if d < 0 {
		return -1
	}
	return int32(min(d.Milliseconds(), math.MaxInt32)) //nolint:gosec // clamped
}
