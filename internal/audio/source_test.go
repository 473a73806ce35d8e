package audio

import (
	"errors"
	"testing"

	"github.com/murmurlabs/murmur-core/internal/config"
)

func TestFrameBytes(t *testing.T) {
	cfg := config.AudioConfig{SampleRate: 16000, Channels: 1, BitDepth: 16, FrameDurationMS: 20}
	if got := FrameBytes(cfg); got != 640 {
		t.Fatalf("expected 640 bytes per 20ms frame at 16kHz mono s16, got %d", got)
	}
}

func TestNewOpenerRejectsUnknownMode(t *testing.T) {
	if _, err := NewOpener(config.AudioConfig{Mode: "jack"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestExecOpenerRequiresCommand(t *testing.T) {
	if _, err := NewOpener(config.AudioConfig{Mode: "exec", Command: ""}); err == nil {
		t.Fatal("expected error for empty exec command")
	}
}

func TestMockSourceScript(t *testing.T) {
	src := NewMockSource(4)
	src.Push(Frame{1, 2}, Frame{3, 4})

	first, err := src.ReadFrame()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 || first[0] != 1 {
		t.Fatalf("unexpected first frame: %v", first)
	}
	if _, err := src.ReadFrame(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// script exhausted, expect silence at the frame size
	silence, err := src.ReadFrame()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(silence) != 4 {
		t.Fatalf("expected 4-byte silence frame, got %d", len(silence))
	}

	src.Fail(ErrReadFailed)
	if _, err := src.ReadFrame(); !errors.Is(err, ErrReadFailed) {
		t.Fatalf("expected read failure, got %v", err)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := src.ReadFrame(); !errors.Is(err, ErrReadFailed) {
		t.Fatalf("expected read failure after close, got %v", err)
	}
}
