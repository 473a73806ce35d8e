package audio

import (
	"bytes"
	"sync"
	"testing"
)

func TestAppendOrderPreserved(t *testing.T) {
	buf := NewCaptureBuffer()
	frames := []Frame{[]byte{1}, []byte{2, 2}, []byte{3, 3, 3}}
	for _, f := range frames {
		buf.Append(f)
	}
	if buf.TotalBytes() != 6 {
		t.Fatalf("expected 6 bytes, got %d", buf.TotalBytes())
	}
	drained := buf.DrainAll()
	if len(drained) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(drained))
	}
	for i := range frames {
		if !bytes.Equal(drained[i], frames[i]) {
			t.Fatalf("frame %d out of order: %v", i, drained[i])
		}
	}
}

func TestDrainConsumesBuffer(t *testing.T) {
	buf := NewCaptureBuffer()
	buf.Append([]byte{1, 2, 3})
	if got := buf.DrainAll(); len(got) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(got))
	}
	if buf.TotalBytes() != 0 {
		t.Fatalf("expected empty buffer after drain, got %d bytes", buf.TotalBytes())
	}
	if got := buf.DrainAll(); got != nil {
		t.Fatalf("expected nil on second drain, got %v", got)
	}
}

func TestClearDiscardsFrames(t *testing.T) {
	buf := NewCaptureBuffer()
	buf.Append([]byte{1, 2})
	buf.Clear()
	if buf.TotalBytes() != 0 || buf.DrainAll() != nil {
		t.Fatal("expected cleared buffer")
	}
}

func TestConcurrentAppendKeepsWriterOrder(t *testing.T) {
	buf := NewCaptureBuffer()
	const n = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			buf.Append(Frame{byte(i), byte(i >> 8)})
		}
	}()

	// interleave a reader to exercise the lock
	for i := 0; i < 10; i++ {
		_ = buf.TotalBytes()
	}
	wg.Wait()

	drained := buf.DrainAll()
	if len(drained) != n {
		t.Fatalf("expected %d frames, got %d", n, len(drained))
	}
	for i, f := range drained {
		if f[0] != byte(i) || f[1] != byte(i>>8) {
			t.Fatalf("frame %d out of order", i)
		}
	}
}
