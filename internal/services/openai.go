package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// OpenAIService implements Provider using the OpenAI Chat Completions and
// Audio Transcriptions APIs.
type OpenAIService struct {
	apiKey   string
	model    string
	sttModel string
	baseURL  string
	client   *http.Client
}

// NewOpenAIService creates a client for the OpenAI API. The HTTP client has
// no timeout of its own; Upstream bounds every call with a context deadline.
func NewOpenAIService(apiKey, model, sttModel, baseURL string) *OpenAIService {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if sttModel == "" {
		sttModel = "whisper-1"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIService{
		apiKey:   apiKey,
		model:    model,
		sttModel: sttModel,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{},
	}
}

func (s *OpenAIService) Name() string { return "openai" }

func (s *OpenAIService) Close() {}

func (s *OpenAIService) Complete(ctx context.Context, system, user string) (string, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	reqBody := map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	if err := s.do(ctx, "/chat/completions", "application/json", bytes.NewReader(jsonBody), &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", &UpstreamError{Provider: s.Name(), Err: fmt.Errorf("no choices in response")}
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (s *OpenAIService) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "speech"+extensionFor(mimeType))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	mw.WriteField("model", s.sttModel)
	if lang := baseLanguage(language); lang != "" {
		mw.WriteField("language", lang)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := s.do(ctx, "/audio/transcriptions", mw.FormDataContentType(), &body, &result); err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

func (s *OpenAIService) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return &UpstreamError{Provider: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Provider: s.Name(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Provider: s.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", openAIErrorMessage(respBody))}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &UpstreamError{Provider: s.Name(), Err: fmt.Errorf("parsing response: %w", err)}
	}
	return nil
}

// openAIErrorMessage extracts error.message from an OpenAI error body,
// falling back to the raw body.
func openAIErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// baseLanguage reduces "en-US" to the ISO-639-1 code "en".
func baseLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

func extensionFor(mimeType string) string {
	mt := strings.ToLower(mimeType)
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	switch strings.TrimSpace(mt) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	}
	return ".wav"
}
