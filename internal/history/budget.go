package history

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// Per-message framing overhead in tokens (role markers and separators).
const messageOverheadTokens = 4

// fallbackCharsPerToken approximates English text when no encoder is
// available.
const fallbackCharsPerToken = 3.2

// ContextBudget trims an API payload to a token budget before an LLM call.
// This is an additional bound on top of the fixed-size window trim: the
// window caps message count, the budget caps tokens.
type ContextBudget struct {
	enc       *tiktoken.Tiktoken
	maxInput  int
	maxOutput int
}

// NewContextBudget sets up a budget of windowTokens×budgetPercent/100 minus
// the reserved output tokens. Encoding cl100k_base covers the models in use
// closely enough for trimming decisions; on encoder init failure a character
// heuristic is used instead.
func NewContextBudget(windowTokens, budgetPercent, maxOutputTokens int) *ContextBudget {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("tiktoken unavailable, using character estimate", "error", err)
		enc = nil
	}
	maxInput := windowTokens*budgetPercent/100 - maxOutputTokens
	if maxInput < 0 {
		maxInput = 0
	}
	return &ContextBudget{enc: enc, maxInput: maxInput, maxOutput: maxOutputTokens}
}

// EstimateTokens counts the tokens of one message including framing overhead.
func (b *ContextBudget) EstimateTokens(m Message) int {
	if b.enc != nil {
		return len(b.enc.Encode(m.Content, nil, nil)) + messageOverheadTokens
	}
	return int(float64(len(m.Content))/fallbackCharsPerToken) + messageOverheadTokens
}

// Fit drops the oldest non-system messages until the payload is within
// budget. The leading system prompt always survives.
func (b *ContextBudget) Fit(messages []Message) []Message {
	total := 0
	for _, m := range messages {
		total += b.EstimateTokens(m)
	}
	if total <= b.maxInput {
		return messages
	}

	out := make([]Message, len(messages))
	copy(out, messages)
	for total > b.maxInput {
		dropped := false
		for i, m := range out {
			if m.Role == RoleSystem {
				continue
			}
			total -= b.EstimateTokens(m)
			out = append(out[:i], out[i+1:]...)
			dropped = true
			break
		}
		if !dropped {
			break
		}
	}
	slog.Debug("trimmed payload to token budget",
		"kept", len(out), "dropped", len(messages)-len(out), "budget", b.maxInput)
	return out
}
