package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider talks to the Anthropic messages API. System entries are
// lifted into the system parameter, and consecutive same-role messages are
// merged because the API requires strict user/assistant alternation while a
// chat window routinely holds several user messages in a row.
type AnthropicProvider struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int
	temperature float64
}

func NewAnthropicProvider(apiKey, model string, maxTokens int, temperature float64) *AnthropicProvider {
	return &AnthropicProvider{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       anthropic.Model(model),
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	system, merged := splitAndMerge(req.Messages)

	msgs := make([]anthropic.MessageParam, 0, len(merged))
	for _, m := range merged {
		msgs = append(msgs, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(m.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = p.temperature
	}

	params := anthropic.MessageNewParams{
		Model:       p.model,
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages:    msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	return &ChatResponse{
		Content: strings.TrimSpace(b.String()),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

// splitAndMerge extracts the system prompt (last system entry wins) and
// collapses consecutive same-role messages. A leading assistant message gets
// a synthetic user opener so the sequence starts with a user turn.
func splitAndMerge(messages []ChatMessage) (system string, out []ChatMessage) {
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, ChatMessage{Role: m.Role, Content: m.Content})
	}
	if len(out) > 0 && out[0].Role == "assistant" {
		out = append([]ChatMessage{{Role: "user", Content: "(continuing the conversation)"}}, out...)
	}
	return system, out
}
