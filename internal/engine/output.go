package engine

import (
	"math"
	"sync/atomic"

	"github.com/llehouerou/wavepost/internal/ringbuf"
)

// Output is the device callback. It reads the ring installed by the
// controller, applies the pause gate and volume, and feeds the tap.
//
// Everything Fill touches is an atomic or preallocated, so it is safe to
// call from the device's real-time goroutine.
type Output struct {
	channels int
	ring     atomic.Pointer[ringbuf.Ring]
	paused   atomic.Bool
	volume   atomic.Uint32 // float32 bits
	tap      *ringbuf.Tap
	drained  chan struct{}
}

// NewOutput creates a paused output with unity gain.
func NewOutput(channels int, tap *ringbuf.Tap) *Output {
	o := &Output{
		channels: max(channels, 1),
		tap:      tap,
		drained:  make(chan struct{}, 1),
	}
	o.paused.Store(true)
	o.volume.Store(math.Float32bits(1))
	return o
}

// Fill implements device.Source.
func (o *Output) Fill(out []float32) {
	r := o.ring.Load()
	if r == nil || o.paused.Load() {
		clear(out)
		return
	}

	r.Pull(out)
	if gain := math.Float32frombits(o.volume.Load()); gain != 1 {
		for i := range out {
			out[i] *= gain
		}
	}
	o.tap.Write(out, o.channels)

	if r.Drained() {
		select {
		case o.drained <- struct{}{}:
		default:
		}
	}
}

// SetRing installs the ring the callback reads from. Nil detaches it and
// the callback outputs silence.
func (o *Output) SetRing(r *ringbuf.Ring) { o.ring.Store(r) }

// Ring returns the installed ring.
func (o *Output) Ring() *ringbuf.Ring { return o.ring.Load() }

// SetPaused gates the callback. While paused it outputs silence and
// consumes nothing.
func (o *Output) SetPaused(paused bool) { o.paused.Store(paused) }

// Paused reports the pause gate.
func (o *Output) Paused() bool { return o.paused.Load() }

// SetVolume sets the linear gain, clamped to [0,1].
func (o *Output) SetVolume(v float64) {
	v = min(max(v, 0), 1)
	o.volume.Store(math.Float32bits(float32(v)))
}

// Volume returns the linear gain.
func (o *Output) Volume() float64 {
	return float64(math.Float32frombits(o.volume.Load()))
}

// Drained fires after the callback pulls the last frame of a finished
// ring. Signals may be stale; receivers re-check the ring.
func (o *Output) Drained() <-chan struct{} { return o.drained }
