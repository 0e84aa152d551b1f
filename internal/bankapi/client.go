// Package bankapi is the HTTP client for the banking-assistant backend.
// It owns no state beyond the base URL: every method is a single
// request/response mapping with failures normalized into APIError.
package bankapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	chatPath       = "/api/chat/"
	verifyPath     = "/api/banking/verify"
	transcribePath = "/api/voice/transcribe"
	synthesizePath = "/api/voice/synthesize"
	voiceChatPath  = "/api/voice/chat"

	// Default voice for synthesis when the caller passes none.
	DefaultVoice = "alloy"

	requestTimeout = 30 * time.Second
)

// Client talks to the banking-assistant backend. Safe for concurrent use.
type Client struct {
	mu      sync.RWMutex
	baseURL string

	httpc   *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer
	latency metric.Float64Histogram
}

// New creates a client against baseURL. The 30 second timeout applies to
// every request; exceeding it yields the same "no response" error as a
// dropped connection.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: requestTimeout},
		logger:  logger,
		tracer:  otel.Tracer("teller/bankapi"),
	}
	hist, err := otel.Meter("teller/bankapi").Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		logger.Warn("failed to create latency histogram", "error", err)
	} else {
		c.latency = hist
	}
	return c
}

// SetBaseURL swaps the backend address. Used by config hot reload.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.mu.Unlock()
}

// BaseURL returns the current backend address.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Send posts one text chat turn.
func (c *Client) Send(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.postJSON(ctx, "chat_turn", chatPath, req, &resp); err != nil {
		return nil, err
	}
	for _, w := range validatePayloads(&resp) {
		c.logger.Warn("chat payload failed schema validation", "detail", w)
	}
	return &resp, nil
}

// Verify posts a customer id + PIN pair for identity verification.
func (c *Client) Verify(ctx context.Context, customerID, pin string) (*VerifyResponse, error) {
	var resp VerifyResponse
	err := c.postJSON(ctx, "verify_identity", verifyPath, VerifyRequest{CustomerID: customerID, PIN: pin}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transcribe uploads a recorded clip and returns its transcription.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (*TranscribeResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return nil, fmt.Errorf("build transcribe form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("build transcribe form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build transcribe form: %w", err)
	}

	body, err := c.postRaw(ctx, "transcribe", transcribePath, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	var resp TranscribeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Message: "Server returned an unreadable response"}
	}
	return &resp, nil
}

// Synthesize asks the backend to speak text and returns raw audio bytes.
// An empty voice falls back to DefaultVoice.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = DefaultVoice
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("text", text); err != nil {
		return nil, fmt.Errorf("build synthesize form: %w", err)
	}
	if err := mw.WriteField("voice", voice); err != nil {
		return nil, fmt.Errorf("build synthesize form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build synthesize form: %w", err)
	}
	return c.postRaw(ctx, "synthesize", synthesizePath, mw.FormDataContentType(), &buf)
}

// VoiceChat posts one voice chat turn.
func (c *Client) VoiceChat(ctx context.Context, req VoiceChatRequest) (*VoiceChatResponse, error) {
	var resp VoiceChatResponse
	if err := c.postJSON(ctx, "voice_chat_turn", voiceChatPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// postJSON issues a JSON POST and decodes the 2xx body into out.
func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}
	body, err := c.postRaw(ctx, op, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Warn("undecodable response body", "op", op, "error", err)
		return &APIError{Message: "Server returned an unreadable response"}
	}
	return nil
}

// postRaw does the shared request plumbing: span, timing, status check.
func (c *Client) postRaw(ctx context.Context, op, path, contentType string, body io.Reader) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("http.route", path))

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "op", op, "error", err)
		return nil, noResponse()
	}
	defer resp.Body.Close()

	if c.latency != nil {
		c.latency.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("op", op)))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := normalizeStatus(resp)
		c.logger.Warn("request rejected", "op", op, "status", resp.StatusCode, "message", apiErr.Message)
		return nil, apiErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("failed to read response body", "op", op, "error", err)
		return nil, noResponse()
	}
	return data, nil
}
