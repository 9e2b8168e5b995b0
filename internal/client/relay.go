package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"jarvis-chat/internal/models"
)

// RelayError is a non-2xx answer from the relay.
type RelayError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *RelayError) Error() string {
	return e.Message
}

// RelayClient talks to the relay's /api routes.
type RelayClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewRelayClient creates a client for the relay at baseURL. A zero timeout
// leaves requests bounded only by their context.
func NewRelayClient(baseURL, token string, timeout time.Duration) *RelayClient {
	return &RelayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ask sends one user message and returns the assistant reply.
func (c *RelayClient) Ask(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(models.ChatRequest{Message: message})
	if err != nil {
		return "", err
	}

	var resp models.ChatResponse
	if err := c.do(ctx, "/api/chat", "application/json", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

// Transcribe uploads a recorded clip and returns its transcript.
func (c *RelayClient) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return "", err
		}
	}
	part, err := mw.CreateFormFile("audio", "speech.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var resp models.TranscribeResponse
	if err := c.do(ctx, "/api/transcribe", mw.FormDataContentType(), &buf, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *RelayClient) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// a body that is not JSON still yields the status fallback
		var errResp models.ErrorResponse
		_ = json.Unmarshal(data, &errResp)
		msg := errResp.Error
		if msg == "" {
			msg = fmt.Sprintf("Request failed (%d)", resp.StatusCode)
		}
		return &RelayError{StatusCode: resp.StatusCode, Message: msg, Details: errResp.Details}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing relay response: %w", err)
	}
	return nil
}
