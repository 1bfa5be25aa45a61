// Package providers wraps the LLM backends behind one Chat interface.
// Three backends are supported: OpenAI, Anthropic and DeepSeek (an
// OpenAI-compatible endpoint with reasoning output).
package providers

import (
	"context"
	"errors"
)

var ErrUnknownProvider = errors.New("providers: unknown provider")

// ChatMessage is one entry of an LLM request payload.
type ChatMessage struct {
	Role    string
	Content string
	Name    string
}

type ChatRequest struct {
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatResponse carries the generated text plus, for reasoning models, the
// chain-of-thought the API returned separately.
type ChatResponse struct {
	Content   string
	Reasoning string
	Usage     Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
