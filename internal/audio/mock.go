package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/murmurlabs/murmur-core/internal/config"
)

type mockOpener struct {
	cfg config.AudioConfig
}

func (o *mockOpener) Open() (Source, error) {
	return NewMockSource(FrameBytes(o.cfg)), nil
}

// MockSource produces scripted frames, padding with silence once the
// script runs out. Tests use it to drive the capture loop without a
// device.
type MockSource struct {
	mu        sync.Mutex
	queue     []Frame
	failure   error
	closed    bool
	frameSize int
	interval  time.Duration
	reads     int
}

func NewMockSource(frameSize int) *MockSource {
	return &MockSource{
		frameSize: frameSize,
		interval:  time.Millisecond,
	}
}

// Push queues a frame to be returned by a future ReadFrame.
func (s *MockSource) Push(frames ...Frame) {
	s.mu.Lock()
	s.queue = append(s.queue, frames...)
	s.mu.Unlock()
}

// Fail makes every subsequent ReadFrame return err once the queue is
// drained.
func (s *MockSource) Fail(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

func (s *MockSource) ReadFrame() (Frame, error) {
	time.Sleep(s.interval)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: source closed", ErrReadFailed)
	}
	s.reads++
	if len(s.queue) > 0 {
		frame := s.queue[0]
		s.queue = s.queue[1:]
		return frame, nil
	}
	if s.failure != nil {
		return nil, s.failure
	}
	return make(Frame, s.frameSize), nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether the session released the source.
func (s *MockSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reads reports how many frames were served.
func (s *MockSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
