package audio

import (
	"fmt"
	"io"
	"os/exec"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/murmurlabs/murmur-core/internal/config"
)

// execOpener captures through an external recorder command (arecord,
// ffmpeg, sox) that writes raw little-endian PCM to stdout. The command
// may reference {device}, {rate} and {channels} placeholders.
type execOpener struct {
	cfg  config.AudioConfig
	argv []string
}

func newExecOpener(cfg config.AudioConfig) (*execOpener, error) {
	command := cfg.Command
	command = strings.ReplaceAll(command, "{device}", cfg.Device)
	command = strings.ReplaceAll(command, "{rate}", fmt.Sprintf("%d", cfg.SampleRate))
	command = strings.ReplaceAll(command, "{channels}", fmt.Sprintf("%d", cfg.Channels))

	parser := shellwords.NewParser()
	argv, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse audio command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("audio command is empty")
	}
	return &execOpener{cfg: cfg, argv: argv}, nil
}

func (o *execOpener) Open() (Source, error) {
	cmd := exec.Command(o.argv[0], o.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return &execSource{
		cmd:        cmd,
		stdout:     stdout,
		frameBytes: FrameBytes(o.cfg),
	}, nil
}

type execSource struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	frameBytes int
}

func (s *execSource) ReadFrame() (Frame, error) {
	frame := make(Frame, s.frameBytes)
	n, err := io.ReadAtLeast(s.stdout, frame, 2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	// keep sample alignment if the pipe delivered an odd byte count
	n -= n % 2
	return frame[:n], nil
}

func (s *execSource) Close() error {
	_ = s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	// the recorder exits by signal, which Wait reports as an error
	_ = s.cmd.Wait()
	return nil
}
