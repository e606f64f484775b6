package ringbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames(start, count, channels int) []float32 {
	out := make([]float32, count*channels)
	for i := range count {
		for c := range channels {
			out[i*channels+c] = float32(start + i)
		}
	}
	return out
}

func TestRing_PushPull(t *testing.T) {
	r := New(8, 2)

	accepted := r.Push(frames(0, 5, 2))
	require.Equal(t, 5, accepted)
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, 3, r.Free())

	out := make([]float32, 4*2)
	n := r.Pull(out)
	require.Equal(t, 4, n)
	assert.Equal(t, frames(0, 4, 2), out)
	assert.Equal(t, uint64(4), r.Consumed())
	assert.Zero(t, r.Underruns())
}

func TestRing_Wraparound(t *testing.T) {
	r := New(4, 1)
	out := make([]float32, 3)

	require.Equal(t, 3, r.Push(frames(0, 3, 1)))
	require.Equal(t, 3, r.Pull(out))

	// Write index is now at 3: the next push spans the end of the buffer.
	require.Equal(t, 4, r.Push(frames(3, 4, 1)))
	out = make([]float32, 4)
	require.Equal(t, 4, r.Pull(out))
	assert.Equal(t, []float32{3, 4, 5, 6}, out)
}

func TestRing_PushFull_ReturnsFewerAndKeepsUnread(t *testing.T) {
	r := New(4, 1)

	require.Equal(t, 4, r.Push(frames(0, 4, 1)))
	assert.Equal(t, 0, r.Push(frames(100, 2, 1)), "full ring accepts nothing")

	out := make([]float32, 1)
	require.Equal(t, 1, r.Pull(out))
	assert.Equal(t, 1, r.Push(frames(100, 3, 1)), "only one slot was freed")

	out = make([]float32, 4)
	require.Equal(t, 4, r.Pull(out))
	assert.Equal(t, []float32{1, 2, 3, 100}, out, "unread frames were not overwritten")
}

func TestRing_PullEmpty_SilenceAndUnderrun(t *testing.T) {
	r := New(4, 2)
	out := []float32{9, 9, 9, 9}

	n := r.Pull(out)

	assert.Equal(t, 0, n)
	assert.Equal(t, []float32{0, 0, 0, 0}, out)
	assert.Equal(t, uint64(1), r.Underruns())
	assert.Zero(t, r.Consumed())
}

func TestRing_ShortPull_PadsWithSilence(t *testing.T) {
	r := New(8, 1)
	r.Push([]float32{0.5, 0.25})
	out := []float32{9, 9, 9, 9}

	n := r.Pull(out)

	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{0.5, 0.25, 0, 0}, out)
	assert.Equal(t, uint64(1), r.Underruns())
}

func TestRing_Finished_NoUnderrun(t *testing.T) {
	r := New(8, 1)
	r.Push([]float32{1, 2})
	r.Finish()
	assert.False(t, r.Drained())

	out := make([]float32, 4)
	assert.Equal(t, 2, r.Pull(out))
	assert.True(t, r.Drained())
	assert.Equal(t, 0, r.Pull(out))
	assert.Zero(t, r.Underruns())
}

func TestRing_PartialFrameIgnored(t *testing.T) {
	r := New(4, 2)
	assert.Equal(t, 1, r.Push([]float32{1, 2, 3}))
	out := make([]float32, 3)
	assert.Equal(t, 1, r.Pull(out))
	assert.Equal(t, []float32{1, 2, 0}, out)
}

func TestRing_ConcurrentProducerConsumer_PreservesOrder(t *testing.T) {
	const total = 20000
	r := New(64, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		next := 0
		for next < total {
			chunk := frames(next, min(17, total-next), 1)
			next += r.Push(chunk)
		}
		r.Finish()
	}()

	got := make([]float32, 0, total)
	out := make([]float32, 13)
	for !r.Drained() {
		n := r.Pull(out)
		got = append(got, out[:n]...)
	}
	wg.Wait()

	require.Len(t, got, total)
	for i, v := range got {
		if v != float32(i) {
			t.Fatalf("frame %d = %v, want %d", i, v, i)
		}
	}
}

func TestRing_LenFreeBoundedUnderConcurrency(t *testing.T) {
	const total = 50000
	r := New(32, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for sent := 0; sent < total; {
			sent += r.Push(frames(sent, min(11, total-sent), 2))
		}
		r.Finish()
	}()
	go func() {
		defer wg.Done()
		out := make([]float32, 2*7)
		for !r.Drained() {
			r.Pull(out)
		}
	}()

	for !r.Drained() {
		n, free := r.Len(), r.Free()
		if n < 0 || n > r.Capacity() || free < 0 || free > r.Capacity() {
			t.Fatalf("Len %d Free %d outside [0,%d]", n, free, r.Capacity())
		}
	}
	wg.Wait()
	assert.Zero(t, r.Len())
	assert.Equal(t, r.Capacity(), r.Free())
}

func TestTap_SnapshotMostRecent(t *testing.T) {
	tap := NewTap(4)
	tap.Write([]float32{1, 3, 5, 7}, 2) // mono: 2, 6

	assert.Equal(t, []float32{2, 6}, tap.Snapshot(nil, 10))

	tap.Write([]float32{1, 2, 3, 4, 5}, 1)
	assert.Equal(t, []float32{3, 4, 5}, tap.Snapshot(nil, 3))
	assert.Equal(t, []float32{2, 3, 4, 5}, tap.Snapshot(make([]float32, 8), 10))

	tap.Reset()
	assert.Empty(t, tap.Snapshot(nil, 4))
}
