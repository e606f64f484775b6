package ringbuf

import (
	"math"
	"sync/atomic"
)

// Tap keeps a mono mix of the most recently played frames for the analyzer.
// The device callback writes; any goroutine may take a snapshot. Slots hold
// float32 bits so readers never race with the writer.
type Tap struct {
	slots []atomic.Uint32
	pos   atomic.Uint64 // total samples written
}

// NewTap creates a tap holding size mono samples.
func NewTap(size int) *Tap {
	if size < 1 {
		size = 1
	}
	return &Tap{slots: make([]atomic.Uint32, size)}
}

// Size returns the number of samples the tap retains.
func (t *Tap) Size() int { return len(t.slots) }

// Write appends the mono mix of interleaved frames. Single writer only.
func (t *Tap) Write(frames []float32, channels int) {
	if channels < 1 {
		return
	}
	size := uint64(len(t.slots))
	pos := t.pos.Load()
	inv := 1 / float32(channels)
	for i := 0; i+channels <= len(frames); i += channels {
		var sum float32
		for c := range channels {
			sum += frames[i+c]
		}
		t.slots[pos%size].Store(math.Float32bits(sum * inv))
		pos++
	}
	t.pos.Store(pos)
}

// Snapshot appends up to n of the most recent samples to dst[:0] in
// chronological order and returns it.
func (t *Tap) Snapshot(dst []float32, n int) []float32 {
	dst = dst[:0]
	size := uint64(len(t.slots))
	pos := t.pos.Load()
	count := min(uint64(max(n, 0)), size, pos)
	for i := pos - count; i < pos; i++ {
		dst = append(dst, math.Float32frombits(t.slots[i%size].Load()))
	}
	return dst
}

// Reset forgets every sample written so far. The writer must be idle.
func (t *Tap) Reset() {
	for i := range t.slots {
		t.slots[i].Store(0)
	}
	t.pos.Store(0)
}
