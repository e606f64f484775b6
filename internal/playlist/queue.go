package playlist

import "math/rand/v2"

// historySize bounds the shuffle memory.
const historySize = 32

// Queue wraps a Playlist with a cursor and a playlist mode.
type Queue struct {
	playlist     *Playlist
	currentIndex int // -1 if empty
	mode         Mode
	history      *History
	rng          *rand.Rand
}

// Option configures a Queue.
type Option func(*Queue)

// WithRand sets the random source used by Shuffle.
func WithRand(r *rand.Rand) Option {
	return func(q *Queue) { q.rng = r }
}

// NewQueue creates a new empty queue in Normal mode.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		playlist:     NewPlaylist(),
		currentIndex: -1,
		history:      NewHistory(historySize),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.rng == nil {
		q.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return q
}

// Current returns the track under the cursor, or nil if none.
func (q *Queue) Current() *Track {
	return q.playlist.Track(q.currentIndex)
}

// CurrentIndex returns the cursor position (-1 if empty).
func (q *Queue) CurrentIndex() int {
	return q.currentIndex
}

// Mode returns the playlist mode.
func (q *Queue) Mode() Mode {
	return q.mode
}

// SetMode changes the playlist mode. The cursor does not move.
func (q *Queue) SetMode(m Mode) {
	q.mode = m
}

// Replace clears the queue, adds tracks, and sets the cursor to 0.
// Returns the first track, or nil when tracks is empty.
func (q *Queue) Replace(tracks ...Track) *Track {
	q.playlist.Clear()
	q.history.Clear()
	q.currentIndex = -1
	if len(tracks) == 0 {
		return nil
	}
	q.playlist.Add(tracks...)
	q.currentIndex = 0
	return q.Current()
}

// Rewind moves the cursor back to the first track.
func (q *Queue) Rewind() *Track {
	if q.IsEmpty() {
		return nil
	}
	q.history.Clear()
	q.currentIndex = 0
	return q.Current()
}

// HasNext returns true if there's a track after the current one.
func (q *Queue) HasNext() bool {
	return q.currentIndex < q.playlist.Len()-1
}

// Advance moves to the track that follows when the current one ends:
//   - Normal: the next track, or nil after the last
//   - RepeatOne: the same track
//   - RepeatAll: the next track, wrapping to the first
//   - Shuffle: a random track not played recently
func (q *Queue) Advance() *Track {
	if q.IsEmpty() {
		return nil
	}
	switch q.mode {
	case RepeatOne:
		return q.Current()
	case RepeatAll:
		return q.moveTo((q.currentIndex + 1) % q.playlist.Len())
	case Shuffle:
		return q.moveTo(q.randomIndex())
	default:
		if !q.HasNext() {
			return nil
		}
		return q.moveTo(q.currentIndex + 1)
	}
}

// Skip moves forward on request. It behaves like Advance except that
// RepeatOne moves on, wrapping like RepeatAll.
func (q *Queue) Skip() *Track {
	if q.mode == RepeatOne && !q.IsEmpty() {
		return q.moveTo((q.currentIndex + 1) % q.playlist.Len())
	}
	return q.Advance()
}

// Recover moves past a track that failed to play. RepeatOne moves on
// sequentially instead of retrying the broken track. Returns nil when no
// track is left.
func (q *Queue) Recover() *Track {
	if q.mode == RepeatOne {
		if !q.HasNext() {
			return nil
		}
		return q.moveTo(q.currentIndex + 1)
	}
	return q.Advance()
}

// Previous moves back one track. Shuffle retraces the play history.
// At the first track the cursor stays, except under RepeatAll which wraps
// to the last.
func (q *Queue) Previous() *Track {
	if q.IsEmpty() {
		return nil
	}
	if q.mode == Shuffle {
		if i, ok := q.history.Pop(); ok {
			q.currentIndex = i
		}
		return q.Current()
	}
	switch {
	case q.currentIndex > 0:
		q.currentIndex--
	case q.mode == RepeatAll:
		q.currentIndex = q.playlist.Len() - 1
	}
	return q.Current()
}

func (q *Queue) moveTo(index int) *Track {
	if index != q.currentIndex && q.currentIndex >= 0 {
		q.history.Push(q.currentIndex)
	}
	q.currentIndex = index
	return q.Current()
}

// randomIndex picks a track other than the current one, avoiding the
// last half playlist's worth of history when possible.
func (q *Queue) randomIndex() int {
	n := q.playlist.Len()
	if n == 1 {
		return 0
	}
	window := n / 2
	candidates := make([]int, 0, n)
	for i := range n {
		if i != q.currentIndex && !q.history.Recent(i, window) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		for i := range n {
			if i != q.currentIndex {
				candidates = append(candidates, i)
			}
		}
	}
	return candidates[q.rng.IntN(len(candidates))]
}

// Tracks returns all tracks in the queue.
func (q *Queue) Tracks() []Track {
	return q.playlist.Tracks()
}

// Len returns the number of tracks in the queue.
func (q *Queue) Len() int {
	return q.playlist.Len()
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return q.playlist.Len() == 0
}
