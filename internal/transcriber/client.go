// Package transcriber uploads WAV captures to an OpenAI-compatible
// speech-to-text endpoint and classifies what came back.
package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/murmurlabs/murmur-core/internal/config"
)

// Result is the parsed transcription of one upload.
type Result struct {
	Text string
}

// Outcome pairs a result with its error for channel delivery.
type Outcome struct {
	Result Result
	Err    error
}

// Client performs multipart uploads against a fixed endpoint. It holds
// no hidden process-wide state: construct one, pass it to whoever
// composes the pipeline.
type Client struct {
	cfg    config.TranscriberConfig
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg config.TranscriberConfig, log *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
		logger: log.With(slog.String("component", "transcriber")),
	}
}

// Transcribe uploads one WAV container and blocks for the response. The
// client never retries; retry policy belongs to the caller.
func (c *Client) Transcribe(ctx context.Context, payload []byte) (Result, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="capture.wav"`)
	header.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(header)
	if err != nil {
		return Result{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return Result{}, fmt.Errorf("write file part: %w", err)
	}

	// fields go out in a fixed order so request bytes are reproducible
	fields := []struct{ name, value string }{
		{"model", c.cfg.Model},
		{"temperature", strconv.FormatFloat(c.cfg.Temperature, 'f', -1, 64)},
		{"response_format", c.cfg.ResponseFormat},
		{"language", c.cfg.Language},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := writer.WriteField(f.name, f.value); err != nil {
			return Result{}, fmt.Errorf("write field %s: %w", f.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, &Error{Kind: KindNetwork, cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &Error{Kind: KindNetwork, cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("transcription rejected",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)))
		return Result{}, &Error{Kind: KindRejected, Status: resp.StatusCode}
	}

	// the success body carries at least {"text": ...}; unknown fields
	// are tolerated
	var parsed struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.Text == nil {
		return Result{}, &Error{Kind: KindMalformedResponse, cause: err}
	}

	c.logger.Debug("transcription complete",
		slog.Int("payload_bytes", len(payload)),
		slog.Duration("elapsed", time.Since(start)))
	return Result{Text: *parsed.Text}, nil
}

// Submit starts the upload in the background and delivers exactly one
// outcome on the returned channel.
func (c *Client) Submit(ctx context.Context, payload []byte) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		result, err := c.Transcribe(ctx, payload)
		out <- Outcome{Result: result, Err: err}
		close(out)
	}()
	return out
}
