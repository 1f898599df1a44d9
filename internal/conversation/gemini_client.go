package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when GEMINI_MODEL_ID is unset.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiLLMClient is the primary NLU provider.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string) (*GeminiLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: create gemini client: %w", err)
	}
	return &GeminiLLMClient{client: client, modelID: modelID}, nil
}

func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return LLMResponse{}, errors.New("conversation: gemini input is empty")
	}
	modelID := c.modelID
	if m := strings.TrimSpace(req.Model); m != "" {
		modelID = m
	}
	model := c.client.GenerativeModel(modelID)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	if instructions := strings.TrimSpace(req.Instructions); instructions != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(instructions))
	}

	out, err := model.GenerateContent(ctx, genai.Text(input))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: gemini generate: %w", err)
	}
	if len(out.Candidates) == 0 || out.Candidates[0].Content == nil {
		return LLMResponse{}, errors.New("conversation: gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return LLMResponse{}, errors.New("conversation: gemini returned empty content")
	}
	resp := LLMResponse{Text: strings.TrimSpace(text.String()), Provider: "gemini"}
	if out.UsageMetadata != nil {
		resp.InputTokens = out.UsageMetadata.PromptTokenCount
		resp.OutputTokens = out.UsageMetadata.CandidatesTokenCount
	}
	return resp, nil
}

// Close releases the underlying gRPC connection.
func (c *GeminiLLMClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
