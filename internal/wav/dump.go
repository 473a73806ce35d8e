package wav

import (
	"encoding/binary"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/murmurlabs/murmur-core/internal/audio"
)

// DumpFile writes a capture to disk for offline inspection. The bytes
// uploaded to the transcriber always come from Encode; this goes through
// the go-audio encoder instead so dumped files are produced by an
// independent writer.
func DumpFile(path string, frames []audio.Frame, f Format) error {
	var pcm []byte
	for _, frame := range frames {
		pcm = append(pcm, frame...)
	}
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not sample aligned")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dump file: %w", err)
	}
	defer file.Close()

	buffer := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		SourceBitDepth: f.BitDepth,
	}
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := gowav.NewEncoder(file, f.SampleRate, f.BitDepth, f.Channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
