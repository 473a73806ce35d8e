package wav

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	gowav "github.com/go-audio/wav"
	"github.com/murmurlabs/murmur-core/internal/audio"
)

var testFormat = Format{SampleRate: 16000, Channels: 1, BitDepth: 16}

func TestEncodeDeterministic(t *testing.T) {
	frames := []audio.Frame{{1, 2}, {3, 4, 5, 6}}
	a := Encode(frames, testFormat)
	b := Encode(frames, testFormat)
	if !bytes.Equal(a, b) {
		t.Fatal("expected byte-identical output for identical input")
	}
}

func TestHeaderFields(t *testing.T) {
	frames := []audio.Frame{
		make(audio.Frame, 100),
		make(audio.Frame, 50),
		make(audio.Frame, 200),
	}
	container := Encode(frames, testFormat)

	if len(container) != 44+350 {
		t.Fatalf("expected 394-byte container, got %d", len(container))
	}
	if string(container[0:4]) != "RIFF" || string(container[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE tags")
	}
	if got := binary.LittleEndian.Uint32(container[4:8]); got != 350+36 {
		t.Fatalf("expected riff size 386, got %d", got)
	}
	if string(container[12:16]) != "fmt " || string(container[36:40]) != "data" {
		t.Fatal("missing fmt/data tags")
	}
	if got := binary.LittleEndian.Uint32(container[16:20]); got != 16 {
		t.Fatalf("expected fmt chunk size 16, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(container[20:22]); got != 1 {
		t.Fatalf("expected PCM format code 1, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(container[22:24]); got != 1 {
		t.Fatalf("expected 1 channel, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(container[24:28]); got != 16000 {
		t.Fatalf("expected 16000 Hz, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(container[28:32]); got != 32000 {
		t.Fatalf("expected byte rate 32000, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(container[32:34]); got != 2 {
		t.Fatalf("expected block align 2, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(container[34:36]); got != 16 {
		t.Fatalf("expected bit depth 16, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(container[40:44]); got != 350 {
		t.Fatalf("expected data size 350, got %d", got)
	}
}

func TestEncodeEmptyCapture(t *testing.T) {
	container := Encode(nil, testFormat)
	if len(container) != HeaderSize {
		t.Fatalf("expected bare 44-byte header, got %d bytes", len(container))
	}
	if got := binary.LittleEndian.Uint32(container[40:44]); got != 0 {
		t.Fatalf("expected data size 0, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(container[4:8]); got != 36 {
		t.Fatalf("expected riff size 36, got %d", got)
	}
}

func TestEncodePayloadOrder(t *testing.T) {
	frames := []audio.Frame{{1, 2}, {3, 4}, {5, 6}}
	container := Encode(frames, testFormat)
	if !bytes.Equal(container[HeaderSize:], []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("payload out of order: %v", container[HeaderSize:])
	}
}

// The container must parse with an independent WAV reader.
func TestEncodeRoundTripsThroughDecoder(t *testing.T) {
	samples := audio.Frame{0x01, 0x00, 0xff, 0x7f, 0x00, 0x80}
	container := Encode([]audio.Frame{samples}, testFormat)

	dec := gowav.NewDecoder(bytes.NewReader(container))
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		t.Fatalf("decoder rejected container: %v", err)
	}
	if dec.SampleRate != 16000 {
		t.Fatalf("decoder saw sample rate %d", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Fatalf("decoder saw %d channels", dec.NumChans)
	}
	if dec.BitDepth != 16 {
		t.Fatalf("decoder saw bit depth %d", dec.BitDepth)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode pcm: %v", err)
	}
	want := []int{1, 32767, -32768}
	if len(pcm.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(pcm.Data))
	}
	for i, s := range want {
		if pcm.Data[i] != s {
			t.Fatalf("sample %d: expected %d, got %d", i, s, pcm.Data[i])
		}
	}
}

func TestDuration(t *testing.T) {
	frames := []audio.Frame{make(audio.Frame, 32000)}
	container := Encode(frames, testFormat)
	if got := Duration(container, testFormat); got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
	if got := Duration(Encode(nil, testFormat), testFormat); got != 0 {
		t.Fatalf("expected 0 for empty capture, got %v", got)
	}
}
