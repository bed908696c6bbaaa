package input

// Ring is a fixed-capacity history of input frames. The oldest frame is
// evicted once the ring is full; it never grows.
type Ring struct {
	frames []Frame
	head   int // index of the next write
	count  int
}

// NewRing allocates a ring of the given capacity.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{frames: make([]Frame, capacity)}
}

// Push appends a frame, evicting the oldest when full.
func (r *Ring) Push(f Frame) {
	r.frames[r.head] = f
	r.head = (r.head + 1) % len(r.frames)
	if r.count < len(r.frames) {
		r.count++
	}
}

func (r *Ring) Len() int { return r.count }
func (r *Ring) Cap() int { return len(r.frames) }

// At returns the i-th frame counted from the oldest.
func (r *Ring) At(i int) Frame {
	start := (r.head - r.count + len(r.frames)) % len(r.frames)
	return r.frames[(start+i)%len(r.frames)]
}

// Latest returns the most recent frame, if any.
func (r *Ring) Latest() (Frame, bool) {
	if r.count == 0 {
		return Frame{}, false
	}
	return r.At(r.count - 1), true
}

// Recent copies up to n most recent frames into dst, oldest first.
func (r *Ring) Recent(dst []Frame, n int) []Frame {
	if n > r.count {
		n = r.count
	}
	for i := r.count - n; i < r.count; i++ {
		dst = append(dst, r.At(i))
	}
	return dst
}

// Reset empties the ring without releasing storage.
func (r *Ring) Reset() {
	r.head = 0
	r.count = 0
}
