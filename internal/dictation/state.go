// Package dictation drives one press-to-record lifecycle: capture while
// held, encode on release, upload, deliver text.
package dictation

import "errors"

// State is the caller-visible status of a session.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateEncoding
	StateUploading
	StateComplete
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateEncoding:
		return "encoding"
	case StateUploading:
		return "uploading"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session is finished for good. A new
// recording needs a fresh session.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateCancelled
}

var (
	// ErrSessionBusy rejects begin while a recording is already live.
	ErrSessionBusy = errors.New("dictation: session already in progress")
	// ErrInvalidTransition rejects an event that is not defined for the
	// current state, e.g. end while idle.
	ErrInvalidTransition = errors.New("dictation: event not valid in current state")
)
