package frame

// FrameBuffer is an ordered ring of at most Capacity PixelArrays, used to
// compute a rolling-window sum over the most recent frames. Insertion is
// at the tail, eviction from the head on overflow. All elements share a
// shape; a shape change clears the buffer (§3).
type FrameBuffer struct {
	Capacity int
	frames   []*PixelArray
}

// NewFrameBuffer creates an empty buffer with the given capacity
// (frames_to_sum, validated elsewhere to be in [1, 100000]).
func NewFrameBuffer(capacity int) *FrameBuffer {
	return &FrameBuffer{Capacity: capacity, frames: make([]*PixelArray, 0, capacity)}
}

// Push appends a frame, evicting from the head if the buffer is now over
// capacity. If the new frame's shape disagrees with the buffer's existing
// contents, the buffer is cleared first (shape-change reset).
func (b *FrameBuffer) Push(p *PixelArray) {
	if len(b.frames) > 0 && !b.frames[0].SameShape(p) {
		b.frames = b.frames[:0]
	}
	b.frames = append(b.frames, p)
	if len(b.frames) > b.Capacity {
		b.frames = b.frames[len(b.frames)-b.Capacity:]
	}
}

// Resize changes the capacity. If the new capacity is smaller than the
// current length, the buffer is trimmed from the head immediately (§4.4
// "frames_to_sum lowered mid-run").
func (b *FrameBuffer) Resize(capacity int) {
	b.Capacity = capacity
	if len(b.frames) > capacity {
		b.frames = b.frames[len(b.frames)-capacity:]
	}
}

// Len returns the number of frames currently held.
func (b *FrameBuffer) Len() int {
	return len(b.frames)
}

// Clear empties the buffer.
func (b *FrameBuffer) Clear() {
	b.frames = b.frames[:0]
}

// WindowSum sums the buffer's contents element-wise into scratch, growing
// it if needed, and returns it. Used to recompute the published window
// sum whenever sum_update_interval_frames elapses or the buffer resizes.
func (b *FrameBuffer) WindowSum(scratch []uint64) []uint64 {
	if len(b.frames) == 0 {
		return scratch[:0]
	}
	size := len(b.frames[0].Pixels)
	if cap(scratch) < size {
		scratch = make([]uint64, size)
	} else {
		scratch = scratch[:size]
		for i := range scratch {
			scratch[i] = 0
		}
	}
	for _, f := range b.frames {
		for i, v := range f.Pixels {
			scratch[i] += uint64(v)
		}
	}
	return scratch
}
