package conversation

import "context"

// LLMRequest is one single-turn NLU call: fixed instructions plus the
// patient-derived input. The assistant never replays chat history to a model.
type LLMRequest struct {
	Model        string
	Instructions string
	Input        string
	MaxTokens    int32
	Temperature  float32
	// JSON asks providers that support it for a JSON-only response.
	JSON bool
}

type LLMResponse struct {
	Text         string
	Provider     string
	InputTokens  int32
	OutputTokens int32
}

// LLMClient is a text-generation provider behind the NLU.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
