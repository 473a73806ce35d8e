package audio

import "sync"

// CaptureBuffer accumulates the frames of one recording. The capture
// goroutine appends while the session orchestrator drains, so every
// operation holds the lock; appends never block longer than that.
//
// The whole recording stays resident until drained. That is a deliberate
// trade: capture is never slowed down by file I/O, at the cost of holding
// a long session's audio in memory.
type CaptureBuffer struct {
	mu     sync.Mutex
	frames []Frame
	bytes  int
}

func NewCaptureBuffer() *CaptureBuffer {
	return &CaptureBuffer{}
}

// Append adds a frame at the end of the buffer.
func (b *CaptureBuffer) Append(frame Frame) {
	b.mu.Lock()
	b.frames = append(b.frames, frame)
	b.bytes += len(frame)
	b.mu.Unlock()
}

// TotalBytes reports the PCM byte count accumulated so far.
func (b *CaptureBuffer) TotalBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// DrainAll consumes the buffer, returning frames in append order.
func (b *CaptureBuffer) DrainAll() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	frames := b.frames
	b.frames = nil
	b.bytes = 0
	return frames
}

// Clear discards all buffered frames.
func (b *CaptureBuffer) Clear() {
	b.mu.Lock()
	b.frames = nil
	b.bytes = 0
	b.mu.Unlock()
}
