//go:build cgo

package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/murmurlabs/murmur-core/internal/config"
)

type portAudioOpener struct {
	cfg config.AudioConfig
}

func newPortAudioOpener(cfg config.AudioConfig) *portAudioOpener {
	return &portAudioOpener{cfg: cfg}
}

func (o *portAudioOpener) Open() (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	samplesPerFrame := o.cfg.SampleRate * o.cfg.FrameDurationMS / 1000 * o.cfg.Channels
	buf := make([]int16, samplesPerFrame)
	stream, err := portaudio.OpenDefaultStream(o.cfg.Channels, 0, float64(o.cfg.SampleRate), len(buf)/o.cfg.Channels, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	return &portAudioSource{stream: stream, buf: buf}, nil
}

type portAudioSource struct {
	stream *portaudio.Stream
	buf    []int16
}

func (s *portAudioSource) ReadFrame() (Frame, error) {
	if err := s.stream.Read(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	frame := make(Frame, len(s.buf)*2)
	for i, sample := range s.buf {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(sample))
	}
	return frame, nil
}

func (s *portAudioSource) Close() error {
	_ = s.stream.Stop()
	err := s.stream.Close()
	_ = portaudio.Terminate()
	return err
}
