// Package device abstracts the audio output backend. A backend pulls
// interleaved float32 frames from a Source on its own schedule.
package device

import (
	"github.com/cockroachdb/errors"
)

// Device error taxonomy.
var (
	ErrDeviceUnavailable     = errors.New("audio device unavailable")
	ErrDeviceDisconnected    = errors.New("audio device disconnected")
	ErrConfigurationRejected = errors.New("audio configuration rejected")
)

// ErrorKind names a device error class for notifications.
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindDeviceUnavailable     ErrorKind = "DeviceUnavailable"
	KindDeviceDisconnected    ErrorKind = "DeviceDisconnected"
	KindConfigurationRejected ErrorKind = "ConfigurationRejected"
)

// Kind classifies err. Unmarked errors count as disconnections.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, ErrConfigurationRejected):
		return KindConfigurationRejected
	default:
		return KindDeviceDisconnected
	}
}

// Source supplies frames to a backend. Fill runs on the backend's real-time
// path: it must fill all of out without blocking, allocating or doing I/O.
type Source interface {
	Fill(out []float32)
}

// Format is the fixed output format of a backend.
type Format struct {
	SampleRate int
	Channels   int
}

// Validate rejects formats no backend can open.
func (f Format) Validate() error {
	if f.SampleRate < 8000 || f.SampleRate > 192000 {
		return errors.Mark(errors.Newf("sample rate %d", f.SampleRate), ErrConfigurationRejected)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return errors.Mark(errors.Newf("%d channels", f.Channels), ErrConfigurationRejected)
	}
	return nil
}

// Backend is an output device.
type Backend interface {
	// Start opens the device and begins pulling from src.
	Start(src Source) error
	// Format returns the output format.
	Format() Format
	// Err reports a fatal device failure, or nil while healthy.
	Err() error
	// Close stops pulling and releases the device.
	Close() error
}
