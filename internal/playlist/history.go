package playlist

// History remembers the most recently played track indices, newest last.
type History struct {
	indices []int
	maxSize int
}

// NewHistory creates a history holding at most maxSize entries.
func NewHistory(maxSize int) *History {
	return &History{
		indices: make([]int, 0, maxSize),
		maxSize: max(maxSize, 1),
	}
}

// Push records index as played. The oldest entry is evicted when full.
func (h *History) Push(index int) {
	h.indices = append(h.indices, index)
	if len(h.indices) > h.maxSize {
		excess := len(h.indices) - h.maxSize
		h.indices = h.indices[excess:]
	}
}

// Pop removes and returns the newest entry.
func (h *History) Pop() (int, bool) {
	if len(h.indices) == 0 {
		return 0, false
	}
	last := h.indices[len(h.indices)-1]
	h.indices = h.indices[:len(h.indices)-1]
	return last, true
}

// Recent reports whether index is among the newest n entries.
func (h *History) Recent(index, n int) bool {
	start := max(len(h.indices)-n, 0)
	for _, i := range h.indices[start:] {
		if i == index {
			return true
		}
	}
	return false
}

// Clear forgets everything.
func (h *History) Clear() {
	h.indices = h.indices[:0]
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.indices)
}
