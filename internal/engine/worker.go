package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/wavepost/internal/decoder"
	"github.com/llehouerou/wavepost/internal/device"
	"github.com/llehouerou/wavepost/internal/resample"
	"github.com/llehouerou/wavepost/internal/ringbuf"
)

// backoff is how long the worker sleeps when the ring is full.
const backoff = 5 * time.Millisecond

// Reply is a message from a worker to the controller. Every reply carries
// the session it belongs to; replies from replaced sessions are stale.
type Reply interface {
	SessionID() uint64
}

// Ready reports that the track opened and decoding has started.
type Ready struct {
	Session     uint64
	Format      decoder.Format
	Duration    time.Duration
	HasDuration bool
	Metadata    decoder.Metadata
}

// Failed reports a decode error. Load is true when the track never opened.
type Failed struct {
	Session uint64
	Load    bool
	Err     error
}

// Seeked acknowledges a seek. Ring holds audio from Position onwards.
type Seeked struct {
	Session  uint64
	Ring     *ringbuf.Ring
	Position time.Duration
}

func (r Ready) SessionID() uint64  { return r.Session }
func (r Failed) SessionID() uint64 { return r.Session }
func (r Seeked) SessionID() uint64 { return r.Session }

type seekRequest struct {
	pos  time.Duration
	ring *ringbuf.Ring
}

// worker decodes one track into a ring until cancelled. It owns the
// decoder and the resampler; nothing else touches them.
type worker struct {
	id       uint64
	location string
	out      device.Format
	ring     *ringbuf.Ring
	replies  chan<- Reply
	log      zerolog.Logger

	mu      sync.Mutex
	pending *seekRequest
	wake    chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func startWorker(
	ctx context.Context,
	id uint64,
	location string,
	out device.Format,
	ring *ringbuf.Ring,
	replies chan<- Reply,
	log zerolog.Logger,
) *worker {
	ctx, cancel := context.WithCancel(ctx)
	w := &worker{
		id:       id,
		location: location,
		out:      out,
		ring:     ring,
		replies:  replies,
		log:      log.With().Uint64("session", id).Logger(),
		wake:     make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

// seek asks the worker to continue from pos into ring. A newer request
// replaces one not yet picked up.
func (w *worker) seek(pos time.Duration, ring *ringbuf.Ring) {
	w.mu.Lock()
	w.pending = &seekRequest{pos: pos, ring: ring}
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) takeSeek() *seekRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	req := w.pending
	w.pending = nil
	return req
}

// stop cancels the worker and waits until it has released its decoder.
func (w *worker) stop() {
	w.cancel()
	<-w.done
}

func (w *worker) send(ctx context.Context, r Reply) bool {
	select {
	case w.replies <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// wait blocks until ctx ends, a seek arrives or d elapses. d <= 0 waits
// without a timeout.
func (w *worker) wait(ctx context.Context, d time.Duration) bool {
	var tick <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		tick = t.C
	}
	select {
	case <-ctx.Done():
		return false
	case <-w.wake:
	case <-tick:
	}
	return true
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)

	dec, err := decoder.Open(w.location)
	if err != nil {
		w.log.Debug().Err(err).Str("location", w.location).Msg("open failed")
		w.send(ctx, Failed{Session: w.id, Load: true, Err: err})
		return
	}
	defer dec.Close()

	f := dec.Format()
	dur, hasDur := dec.Duration()
	if !w.send(ctx, Ready{
		Session:     w.id,
		Format:      f,
		Duration:    dur,
		HasDuration: hasDur,
		Metadata:    dec.Metadata(),
	}) {
		return
	}
	w.log.Debug().
		Str("codec", f.Codec).
		Int("rate", f.SampleRate).
		Int("channels", f.Channels).
		Dur("duration", dur).
		Msg("decoding")

	rs := resample.New(f.SampleRate, f.Channels, w.out.SampleRate, w.out.Channels)
	ring := w.ring
	ch := ring.Channels()
	var pending []float32
	eof := false

	for ctx.Err() == nil {
		if req := w.takeSeek(); req != nil {
			if err := dec.Seek(req.pos); err != nil {
				w.send(ctx, Failed{Session: w.id, Err: err})
				return
			}
			rs.Reset()
			pending, eof = nil, false
			ring = req.ring
			if !w.send(ctx, Seeked{Session: w.id, Ring: ring, Position: dec.Position()}) {
				return
			}
			continue
		}

		if len(pending) > 0 {
			n := ring.Push(pending)
			pending = pending[n*ch:]
			if len(pending) > 0 && !w.wait(ctx, backoff) {
				return
			}
			continue
		}

		if eof {
			ring.Finish()
			if !w.wait(ctx, 0) {
				return
			}
			continue
		}

		b, err := dec.Next()
		if err != nil {
			w.log.Debug().Err(err).Msg("decode failed")
			w.send(ctx, Failed{Session: w.id, Err: err})
			return
		}
		if b == nil {
			pending, eof = rs.Flush(), true
			continue
		}
		pending = rs.Process(b.Samples)
	}
}
