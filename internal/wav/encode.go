// Package wav serializes captured PCM into a canonical RIFF/WAVE
// container: a fixed 44-byte header followed by the sample data.
package wav

import (
	"encoding/binary"
	"time"

	"github.com/murmurlabs/murmur-core/internal/audio"
)

// HeaderSize is the length of the canonical PCM WAV header.
const HeaderSize = 44

// pcmFormatCode is the RIFF audio format tag for uncompressed PCM.
const pcmFormatCode = 1

// Format describes the PCM layout stamped into the header.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// BlockAlign is the byte size of one multi-channel sample.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitDepth / 8
}

// ByteRate is the PCM data rate in bytes per second.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Encode builds a WAV container from the drained capture frames. It is a
// pure function of its inputs: no I/O, byte-identical output for
// identical input. Zero frames still yield a structurally valid 44-byte
// container with a zero-length data chunk.
func Encode(frames []audio.Frame, f Format) []byte {
	dataSize := 0
	for _, frame := range frames {
		dataSize += len(frame)
	}

	out := make([]byte, HeaderSize, HeaderSize+dataSize)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(dataSize+36))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], pcmFormatCode)
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(out[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.BitDepth))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	for _, frame := range frames {
		out = append(out, frame...)
	}
	return out
}

// Duration reports the play time of a container's PCM payload.
func Duration(container []byte, f Format) time.Duration {
	if len(container) <= HeaderSize || f.ByteRate() == 0 {
		return 0
	}
	dataBytes := len(container) - HeaderSize
	return time.Duration(dataBytes) * time.Second / time.Duration(f.ByteRate())
}
