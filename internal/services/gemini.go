package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiService implements Provider on top of the Gemini API.
type GeminiService struct {
	client    *genai.Client
	modelName string
}

func NewGeminiService(apiKey, modelName string) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-3-flash-preview"
	}

	return &GeminiService{
		client:    client,
		modelName: modelName,
	}, nil
}

func (s *GeminiService) Name() string { return "gemini" }

func (s *GeminiService) Close() {
	s.client.Close()
}

// model returns a fresh GenerativeModel so per-call settings such as the
// system instruction never leak between concurrent requests.
func (s *GeminiService) model(system string) *genai.GenerativeModel {
	model := s.client.GenerativeModel(s.modelName)
	model.SetTemperature(0.7)
	model.SetTopP(0.95)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	return model
}

func (s *GeminiService) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := s.model(system).GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", &UpstreamError{Provider: s.Name(), Err: err}
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", &UpstreamError{Provider: s.Name(), Err: fmt.Errorf("empty response (finish reason %s)", finishReason(resp))}
	}
	return text, nil
}

// Transcribe sends the recorded clip inline. Voice commands are short, so
// the File API round trip is not needed.
func (s *GeminiService) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}

	prompt := "Transcribe the provided audio verbatim. Return plain text only, without markdown, headers, or explanations."
	if language != "" {
		prompt += " The speaker's language is " + language + "."
	}

	resp, err := s.model("").GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: mimeType, Data: audio},
	)
	if err != nil {
		return "", &UpstreamError{Provider: s.Name(), Err: fmt.Errorf("transcription: %w", err)}
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", &UpstreamError{Provider: s.Name(), Err: fmt.Errorf("empty transcription")}
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return "none"
	}
	return fmt.Sprint(resp.Candidates[0].FinishReason)
}
