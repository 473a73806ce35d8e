package protocol

import "time"

// StateChange is broadcast whenever a dictation session transitions.
type StateChange struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript carries the final text of a completed session.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectDictationState      = "dictation.state"
	SubjectDictationTranscript = "dictation.transcript"
)
