//go:build !cgo

package audio

import (
	"fmt"

	"github.com/murmurlabs/murmur-core/internal/config"
)

type portAudioOpener struct {
	cfg config.AudioConfig
}

func newPortAudioOpener(cfg config.AudioConfig) *portAudioOpener {
	return &portAudioOpener{cfg: cfg}
}

func (o *portAudioOpener) Open() (Source, error) {
	return nil, fmt.Errorf("%w: portaudio backend requires cgo", ErrDeviceUnavailable)
}
