//nolint:goconst // test file with repeated string literals
package playlist

import (
	"math/rand/v2"
	"testing"
)

func tracks(locations ...string) []Track {
	out := make([]Track, len(locations))
	for i, loc := range locations {
		out[i] = NewTrack(loc)
	}
	return out
}

func newQueue(mode Mode, locations ...string) *Queue {
	q := NewQueue(WithRand(rand.New(rand.NewPCG(1, 2))))
	q.Replace(tracks(locations...)...)
	q.SetMode(mode)
	return q
}

func location(tr *Track) string {
	if tr == nil {
		return "<nil>"
	}
	return tr.Location
}

func TestNewQueue(t *testing.T) {
	q := NewQueue()

	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	if q.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1", q.CurrentIndex())
	}
	if q.Current() != nil {
		t.Error("Current() should be nil for empty queue")
	}
	if q.Mode() != Normal {
		t.Errorf("Mode() = %v, want Normal", q.Mode())
	}
	if q.Advance() != nil || q.Previous() != nil || q.Rewind() != nil {
		t.Error("navigation on an empty queue should return nil")
	}
}

func TestQueue_Replace(t *testing.T) {
	q := newQueue(Normal, "/old1.mp3", "/old2.mp3")
	q.Advance()

	track := q.Replace(tracks("/new.mp3")...)

	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
	if q.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", q.CurrentIndex())
	}
	if location(track) != "/new.mp3" {
		t.Errorf("returned track = %s, want /new.mp3", location(track))
	}
}

func TestQueue_Replace_Empty(t *testing.T) {
	q := newQueue(Normal, "/a.mp3")

	if track := q.Replace(); track != nil {
		t.Error("Replace with no tracks should return nil")
	}
	if q.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1", q.CurrentIndex())
	}
}

func TestQueue_Advance(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		start int
		want  string
	}{
		{"normal moves on", Normal, 0, "/b.mp3"},
		{"normal stops after last", Normal, 2, "<nil>"},
		{"repeat one stays", RepeatOne, 1, "/b.mp3"},
		{"repeat all moves on", RepeatAll, 1, "/c.mp3"},
		{"repeat all wraps", RepeatAll, 2, "/a.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue(Normal, "/a.mp3", "/b.mp3", "/c.mp3")
			for range tt.start {
				q.Advance()
			}
			q.SetMode(tt.mode)

			if got := location(q.Advance()); got != tt.want {
				t.Errorf("Advance() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestQueue_Skip(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		start int
		want  string
	}{
		{"normal at end", Normal, 1, "<nil>"},
		{"repeat one moves on", RepeatOne, 0, "/b.mp3"},
		{"repeat one wraps", RepeatOne, 1, "/a.mp3"},
		{"repeat all wraps", RepeatAll, 1, "/a.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue(Normal, "/a.mp3", "/b.mp3")
			for range tt.start {
				q.Advance()
			}
			q.SetMode(tt.mode)

			if got := location(q.Skip()); got != tt.want {
				t.Errorf("Skip() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestQueue_Recover(t *testing.T) {
	q := newQueue(RepeatOne, "/a.mp3", "/b.mp3")

	if got := location(q.Recover()); got != "/b.mp3" {
		t.Errorf("Recover() = %s, want /b.mp3", got)
	}
	if got := location(q.Recover()); got != "<nil>" {
		t.Errorf("Recover() at end = %s, want <nil>", got)
	}

	q.SetMode(RepeatAll)
	if got := location(q.Recover()); got != "/a.mp3" {
		t.Errorf("Recover() under RepeatAll = %s, want /a.mp3", got)
	}
}

func TestQueue_Previous(t *testing.T) {
	q := newQueue(Normal, "/a.mp3", "/b.mp3", "/c.mp3")
	q.Advance()

	if got := location(q.Previous()); got != "/a.mp3" {
		t.Errorf("Previous() = %s, want /a.mp3", got)
	}
	if got := location(q.Previous()); got != "/a.mp3" {
		t.Errorf("Previous() at start = %s, want /a.mp3", got)
	}

	q.SetMode(RepeatAll)
	if got := location(q.Previous()); got != "/c.mp3" {
		t.Errorf("Previous() under RepeatAll = %s, want /c.mp3", got)
	}
}

func TestQueue_Rewind(t *testing.T) {
	q := newQueue(Normal, "/a.mp3", "/b.mp3")
	q.Advance()

	if got := location(q.Rewind()); got != "/a.mp3" {
		t.Errorf("Rewind() = %s, want /a.mp3", got)
	}
	if q.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", q.CurrentIndex())
	}
}

func TestQueue_Shuffle_AvoidsRecentRepeats(t *testing.T) {
	locs := []string{"/0", "/1", "/2", "/3", "/4", "/5", "/6", "/7"}
	q := newQueue(Shuffle, locs...)

	var played []int
	for range 200 {
		if q.Advance() == nil {
			t.Fatal("shuffle never runs out")
		}
		played = append(played, q.CurrentIndex())
	}

	// Each pick differs from the previous len/2 picks.
	window := len(locs) / 2
	for i, idx := range played {
		for j := max(i-window, 0); j < i; j++ {
			if played[j] == idx {
				t.Fatalf("track %d repeated within %d picks at %d: %v", idx, window, i, played[max(i-window, 0):i+1])
			}
		}
	}
}

func TestQueue_Shuffle_SingleTrack(t *testing.T) {
	q := newQueue(Shuffle, "/only.mp3")

	for range 3 {
		if got := location(q.Advance()); got != "/only.mp3" {
			t.Fatalf("Advance() = %s, want /only.mp3", got)
		}
	}
}

func TestQueue_Shuffle_PreviousRetracesHistory(t *testing.T) {
	q := newQueue(Shuffle, "/0", "/1", "/2", "/3", "/4")
	visited := []int{q.CurrentIndex()}
	for range 3 {
		q.Advance()
		visited = append(visited, q.CurrentIndex())
	}

	for i := len(visited) - 2; i >= 0; i-- {
		q.Previous()
		if q.CurrentIndex() != visited[i] {
			t.Fatalf("Previous() index = %d, want %d", q.CurrentIndex(), visited[i])
		}
	}
}

func TestMode_RoundTrip(t *testing.T) {
	for _, m := range Modes {
		b, err := m.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", m, err)
		}
		var got Mode
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", b, err)
		}
		if got != m {
			t.Errorf("round trip %v = %v", m, got)
		}
	}

	if _, err := ParseMode("Sometimes"); err == nil {
		t.Error("ParseMode should reject unknown names")
	}
}

func TestMode_Next(t *testing.T) {
	want := []Mode{Shuffle, RepeatOne, RepeatAll, Normal}
	m := Normal
	for i, w := range want {
		m = m.Next()
		if m != w {
			t.Errorf("step %d: Next() = %v, want %v", i, m, w)
		}
	}
}
