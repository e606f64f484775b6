// Package ringbuf provides the lock-free queue between the decode worker and
// the device callback, plus a tap of recently played samples for analysis.
//
// Ring is strictly single-producer/single-consumer. The producer owns the
// write index, the consumer owns the read index, and each index is only
// advanced by its owner. Frames are interleaved float32 samples.
package ringbuf

import "sync/atomic"

// Ring is a fixed-capacity circular buffer of interleaved frames.
type Ring struct {
	buf      []float32
	channels uint64
	capacity uint64 // in frames

	write atomic.Uint64 // total frames written, producer-owned
	read  atomic.Uint64 // total frames read, consumer-owned

	consumed  atomic.Uint64
	underruns atomic.Uint64
	finished  atomic.Bool
}

// New allocates a ring holding capacity frames of the given channel count.
func New(capacity, channels int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	if channels < 1 {
		channels = 1
	}
	return &Ring{
		buf:      make([]float32, capacity*channels),
		channels: uint64(channels),
		capacity: uint64(capacity),
	}
}

// Channels returns the number of samples per frame.
func (r *Ring) Channels() int { return int(r.channels) }

// Capacity returns the ring size in frames.
func (r *Ring) Capacity() int { return int(r.capacity) }

// Len returns the number of unread frames. It may be called from any
// goroutine; read is loaded before write so the difference cannot wrap.
func (r *Ring) Len() int {
	rd := r.read.Load()
	w := r.write.Load()
	return int(min(w-rd, r.capacity))
}

// Free returns the number of frames that can be pushed without overwriting.
func (r *Ring) Free() int {
	return int(r.capacity) - r.Len()
}

// Push copies as many whole frames from samples as fit and returns the
// number of frames accepted. It never blocks and never overwrites unread
// frames; callers back off when fewer frames than offered are accepted.
// Producer side only.
func (r *Ring) Push(samples []float32) int {
	n := uint64(len(samples)) / r.channels
	w := r.write.Load()
	free := r.capacity - (w - r.read.Load())
	n = min(n, free)
	if n == 0 {
		return 0
	}

	start := w % r.capacity
	first := min(n, r.capacity-start)
	ch := r.channels
	copy(r.buf[start*ch:(start+first)*ch], samples[:first*ch])
	if first < n {
		copy(r.buf[:(n-first)*ch], samples[first*ch:n*ch])
	}

	r.write.Store(w + n)
	return int(n)
}

// Pull fills out with up to len(out)/channels frames and returns how many
// came from the ring. The remainder of out is zeroed. A short pull on a
// ring that has not been finished counts as one underrun. Consumer side
// only; safe to call from the device callback.
func (r *Ring) Pull(out []float32) int {
	finished := r.finished.Load()
	want := uint64(len(out)) / r.channels
	rd := r.read.Load()
	n := min(want, r.write.Load()-rd)

	ch := r.channels
	if n > 0 {
		start := rd % r.capacity
		first := min(n, r.capacity-start)
		copy(out[:first*ch], r.buf[start*ch:(start+first)*ch])
		if first < n {
			copy(out[first*ch:n*ch], r.buf[:(n-first)*ch])
		}
		r.read.Store(rd + n)
		r.consumed.Add(n)
	}

	clear(out[n*ch:])
	if n < want && !finished {
		r.underruns.Add(1)
	}
	return int(n)
}

// Finish marks the end of the producer's stream. Short pulls after Finish
// are not underruns.
func (r *Ring) Finish() { r.finished.Store(true) }

// Finished reports whether the producer has called Finish.
func (r *Ring) Finished() bool { return r.finished.Load() }

// Drained reports whether the producer finished and every frame was pulled.
func (r *Ring) Drained() bool {
	return r.finished.Load() && r.write.Load() == r.read.Load()
}

// Consumed returns the number of real frames handed to the consumer.
func (r *Ring) Consumed() uint64 { return r.consumed.Load() }

// Underruns returns the number of short pulls on a live ring.
func (r *Ring) Underruns() uint64 { return r.underruns.Load() }
