package transcriber

import "context"

// MockClient returns a fixed outcome without touching the network.
type MockClient struct {
	Text string
	Err  error

	// Payloads records what was submitted, in order.
	Payloads [][]byte
}

func NewMockClient(text string) *MockClient {
	return &MockClient{Text: text}
}

func (m *MockClient) Submit(ctx context.Context, payload []byte) <-chan Outcome {
	m.Payloads = append(m.Payloads, append([]byte(nil), payload...))
	out := make(chan Outcome, 1)
	out <- Outcome{Result: Result{Text: m.Text}, Err: m.Err}
	close(out)
	return out
}
