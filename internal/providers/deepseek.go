package providers

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

const (
	deepseekDefaultBase  = "https://api.deepseek.com/v1"
	deepseekDefaultModel = "deepseek-chat"
)

// DeepSeekProvider wraps OpenAIProvider for DeepSeek's OpenAI-compatible
// endpoint. Reasoning arrives two ways depending on the model: as a separate
// reasoning_content field, or inline as <think> tags in the content. Both
// are normalized into ChatResponse.Reasoning.
type DeepSeekProvider struct {
	*OpenAIProvider
}

func NewDeepSeekProvider(apiKey, apiBase, model string, maxTokens int, temperature float64) *DeepSeekProvider {
	if apiBase == "" {
		apiBase = deepseekDefaultBase
	}
	if model == "" {
		model = deepseekDefaultModel
	}
	return &DeepSeekProvider{
		OpenAIProvider: NewOpenAIProvider("deepseek", apiKey, apiBase, model, maxTokens, temperature),
	}
}

func (p *DeepSeekProvider) Name() string { return "deepseek" }

func (p *DeepSeekProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := p.OpenAIProvider.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Reasoning == "" && strings.Contains(strings.ToLower(resp.Content), "<think>") {
		content, thinking := StripThinkingTags(resp.Content)
		resp.Content = content
		resp.Reasoning = thinking
		slog.Debug("extracted inline thinking block", "chars", len(thinking))
	}
	return resp, nil
}

var thinkTagRe = regexp.MustCompile(`(?is)<think>(.*?)</think>`)
var blankRunsRe = regexp.MustCompile(`\n\s*\n\s*\n+`)

// OnlyThinkingFallback replaces a response whose visible part is empty after
// removing the thinking block.
const OnlyThinkingFallback = "[Response contained only thinking content - no final answer provided]"

// StripThinkingTags removes <think> blocks from text and returns the cleaned
// answer plus the concatenated thinking content. When nothing remains outside
// the tags the answer is a fixed fallback line.
func StripThinkingTags(text string) (answer, thinking string) {
	var parts []string
	for _, match := range thinkTagRe.FindAllStringSubmatch(text, -1) {
		if t := strings.TrimSpace(match[1]); t != "" {
			parts = append(parts, t)
		}
	}
	answer = thinkTagRe.ReplaceAllString(text, "")
	answer = blankRunsRe.ReplaceAllString(answer, "\n\n")
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = OnlyThinkingFallback
	}
	return answer, strings.Join(parts, "\n\n")
}
