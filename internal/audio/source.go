package audio

import (
	"errors"
	"fmt"

	"github.com/murmurlabs/murmur-core/internal/config"
)

// Frame is one chunk of little-endian PCM bytes produced by a single
// device read.
type Frame []byte

var (
	// ErrPermissionDenied means the process is not authorized to use the
	// microphone.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")
	// ErrDeviceUnavailable means the capture device could not be
	// initialized, e.g. it is already in use.
	ErrDeviceUnavailable = errors.New("audio: capture device unavailable")
	// ErrReadFailed wraps transient I/O errors during capture.
	ErrReadFailed = errors.New("audio: device read failed")
)

// Source produces PCM frames on demand. ReadFrame blocks until at least
// one sample is available or the device signals end of stream. Sources do
// not buffer beyond the device's own minimum; accumulation is the
// CaptureBuffer's job.
type Source interface {
	ReadFrame() (Frame, error)
	Close() error
}

// Opener opens one capture session at a time.
type Opener interface {
	Open() (Source, error)
}

// NewOpener selects the capture backend for the configured mode.
func NewOpener(cfg config.AudioConfig) (Opener, error) {
	switch cfg.Mode {
	case "portaudio":
		return newPortAudioOpener(cfg), nil
	case "exec":
		return newExecOpener(cfg)
	case "mock":
		return &mockOpener{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown audio mode %q", cfg.Mode)
	}
}

// FrameBytes is the byte size of one capture frame for the
// configured format and frame duration.
func FrameBytes(cfg config.AudioConfig) int {
	bytesPerSecond := cfg.SampleRate * cfg.Channels * cfg.BitDepth / 8
	return bytesPerSecond * cfg.FrameDurationMS / 1000
}
