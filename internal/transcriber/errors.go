package transcriber

import (
	"errors"
	"fmt"
)

// Kind classifies upload failures.
type Kind int

const (
	// KindNetwork covers connectivity failures before any HTTP status
	// was received.
	KindNetwork Kind = iota + 1
	// KindRejected means the endpoint answered with a non-2xx status.
	KindRejected
	// KindMalformedResponse means a 2xx body could not be parsed into
	// the expected shape.
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error is a classified transcription failure. Status is set for
// KindRejected only.
type Error struct {
	Kind   Kind
	Status int
	cause  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRejected:
		return fmt.Sprintf("transcriber: endpoint rejected upload with status %d", e.Status)
	case KindMalformedResponse:
		return "transcriber: malformed response body"
	default:
		if e.cause != nil {
			return fmt.Sprintf("transcriber: network failure: %v", e.cause)
		}
		return "transcriber: network failure"
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Classify extracts the failure kind and HTTP status from err. ok is
// false when err is not a transcriber error.
func Classify(err error) (kind Kind, status int, ok bool) {
	var te *Error
	if !errors.As(err, &te) {
		return 0, 0, false
	}
	return te.Kind, te.Status, true
}
