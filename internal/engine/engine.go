// Package engine connects the decode worker to the output device.
//
// One worker goroutine per track decodes, resamples and pushes frames into
// a ring. The device pulls from the ring through Output. The controller
// drives the engine from a single goroutine; Engine methods are not safe
// for concurrent use, except for the Output, which the device calls.
package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/llehouerou/wavepost/internal/device"
	"github.com/llehouerou/wavepost/internal/ringbuf"
)

// Config sizes the engine's buffers.
type Config struct {
	// Buffer is the ring capacity expressed as playback time.
	Buffer time.Duration
	// TapSize is the number of played mono samples kept for analysis.
	TapSize int
}

// Engine owns the output path and the current worker.
type Engine struct {
	backend device.Backend
	format  device.Format
	output  *Output
	tap     *ringbuf.Tap
	frames  int
	log     zerolog.Logger

	replies  chan Reply
	worker   *worker
	ring     *ringbuf.Ring
	seeking  *ringbuf.Ring
	attached bool
	session  uint64
	lastID   uint64
}

// New creates an engine for backend. Start opens the device.
func New(backend device.Backend, cfg Config, log zerolog.Logger) *Engine {
	format := backend.Format()
	tap := ringbuf.NewTap(max(cfg.TapSize, 1))
	frames := max(int(int64(format.SampleRate)*int64(cfg.Buffer)/int64(time.Second)), 1024)
	return &Engine{
		backend: backend,
		format:  format,
		output:  NewOutput(format.Channels, tap),
		tap:     tap,
		frames:  frames,
		log:     log.With().Str("component", "engine").Logger(),
		replies: make(chan Reply, 4),
	}
}

// Start opens the device and begins pulling.
func (e *Engine) Start() error {
	if err := e.backend.Start(e.output); err != nil {
		return errors.Wrap(err, "start output")
	}
	e.log.Debug().
		Int("rate", e.format.SampleRate).
		Int("channels", e.format.Channels).
		Int("ring_frames", e.frames).
		Msg("output started")
	return nil
}

// SetBackend replaces the output device, for example after the previous one
// was lost. The old backend is closed.
func (e *Engine) SetBackend(b device.Backend) error {
	if b.Format() != e.format {
		return errors.Mark(
			errors.Newf("backend format %+v differs from %+v", b.Format(), e.format),
			device.ErrConfigurationRejected,
		)
	}
	if err := e.backend.Close(); err != nil {
		e.log.Warn().Err(err).Msg("close previous backend")
	}
	e.backend = b
	return e.Start()
}

// Format returns the output format.
func (e *Engine) Format() device.Format { return e.format }

// Output returns the device callback.
func (e *Engine) Output() *Output { return e.output }

// Tap returns the history of played samples.
func (e *Engine) Tap() *ringbuf.Tap { return e.tap }

// Replies delivers worker replies. Callers drop replies whose SessionID
// differs from Session.
func (e *Engine) Replies() <-chan Reply { return e.replies }

// Drained fires when the attached ring has played out.
func (e *Engine) Drained() <-chan struct{} { return e.output.Drained() }

// Session returns the id of the current worker, or zero.
func (e *Engine) Session() uint64 { return e.session }

// Load stops any current track and starts decoding location. Playback
// starts on Attach once the worker replies Ready.
func (e *Engine) Load(ctx context.Context, location string) uint64 {
	e.Stop()
	e.lastID++
	e.session = e.lastID
	e.ring = ringbuf.New(e.frames, e.format.Channels)
	e.worker = startWorker(ctx, e.session, location, e.format, e.ring, e.replies, e.log)
	return e.session
}

// Attach routes the current ring to the device and lifts the pause gate.
func (e *Engine) Attach() {
	if e.ring == nil {
		return
	}
	e.tap.Reset()
	e.output.SetRing(e.ring)
	e.attached = true
	e.output.SetPaused(false)
}

// Seek asks the worker to continue from pos. The device plays silence
// until Install is called with the acknowledged ring.
func (e *Engine) Seek(pos time.Duration) {
	if e.worker == nil {
		return
	}
	e.output.SetRing(nil)
	e.ring = nil
	e.seeking = ringbuf.New(e.frames, e.format.Channels)
	e.worker.seek(pos, e.seeking)
}

// Install switches the device to ring, acknowledged by a Seeked reply. It
// reports false for acknowledgements of superseded seeks.
func (e *Engine) Install(r *ringbuf.Ring) bool {
	if r == nil || r != e.seeking {
		return false
	}
	e.seeking = nil
	e.ring = r
	if e.attached {
		e.output.SetRing(r)
	}
	return true
}

// Seeking reports whether a seek awaits its acknowledgement.
func (e *Engine) Seeking() bool { return e.seeking != nil }

// Stop cancels the worker, waits for it to release its decoder and
// detaches the ring.
func (e *Engine) Stop() {
	e.output.SetPaused(true)
	e.output.SetRing(nil)
	if e.worker != nil {
		e.worker.stop()
		e.worker = nil
	}
	e.ring = nil
	e.seeking = nil
	e.attached = false
	e.session = 0
}

// SetPaused gates the device.
func (e *Engine) SetPaused(paused bool) { e.output.SetPaused(paused) }

// SetVolume sets the output gain in [0,1].
func (e *Engine) SetVolume(v float64) { e.output.SetVolume(v) }

// Consumed returns frames the device has played from the current ring.
func (e *Engine) Consumed() uint64 {
	if e.ring == nil || !e.attached {
		return 0
	}
	return e.ring.Consumed()
}

// Played converts Consumed to playback time.
func (e *Engine) Played() time.Duration {
	return time.Duration(e.Consumed()) * time.Second / time.Duration(e.format.SampleRate)
}

// Underruns returns the current ring's underrun count.
func (e *Engine) Underruns() uint64 {
	if e.ring == nil {
		return 0
	}
	return e.ring.Underruns()
}

// Ended reports whether the attached ring has played out.
func (e *Engine) Ended() bool {
	return e.ring != nil && e.attached && e.ring.Drained()
}

// DeviceErr reports a device failure.
func (e *Engine) DeviceErr() error { return e.backend.Err() }

// Close stops the worker and the device.
func (e *Engine) Close() error {
	e.Stop()
	return e.backend.Close()
}
