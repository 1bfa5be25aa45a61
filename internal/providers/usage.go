package providers

import (
	"log/slog"
	"sync"
)

// UsageAccumulator tracks cumulative token consumption per provider for the
// lifetime of the process. Logged after every call; there is no billing
// accuracy claim, the numbers are whatever the APIs report.
type UsageAccumulator struct {
	mu     sync.Mutex
	totals map[string]Usage
	calls  map[string]int
}

func NewUsageAccumulator() *UsageAccumulator {
	return &UsageAccumulator{
		totals: make(map[string]Usage),
		calls:  make(map[string]int),
	}
}

func (a *UsageAccumulator) Record(provider string, u Usage) {
	a.mu.Lock()
	t := a.totals[provider]
	t.PromptTokens += u.PromptTokens
	t.CompletionTokens += u.CompletionTokens
	t.TotalTokens += u.TotalTokens
	a.totals[provider] = t
	a.calls[provider]++
	calls := a.calls[provider]
	a.mu.Unlock()

	slog.Info("llm usage",
		"provider", provider,
		"prompt_tokens", u.PromptTokens,
		"completion_tokens", u.CompletionTokens,
		"cumulative_total", t.TotalTokens,
		"calls", calls)
}

// Totals returns a snapshot of per-provider cumulative usage.
func (a *UsageAccumulator) Totals() map[string]Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]Usage, len(a.totals))
	for k, v := range a.totals {
		out[k] = v
	}
	return out
}
