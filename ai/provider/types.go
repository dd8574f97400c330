package provider

import "context"

// TextGenerator is the model call the extractor depends on.
// LocalProvider is the production implementation; tests substitute fakes.
type TextGenerator interface {
	// GenerateText sends one system+user exchange and returns the assistant content verbatim
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// GetModelName returns the model the generator is bound to
	GetModelName() string
}

// ChatCompletionRequest matches OpenAI API format (Ollama is compatible)
type ChatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []ChatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *CompletionOpts `json:"options,omitempty"` // Ollama-specific options
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionOpts struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	MaxTokens   int     `json:"num_predict,omitempty"` // Ollama uses num_predict
	NumCtx      int     `json:"num_ctx,omitempty"`     // Context window size (Ollama default: 4096)
}

// ChatCompletionResponse matches OpenAI API format
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// ModelInfo is one entry of Ollama's /api/tags listing
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}
