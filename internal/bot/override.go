package bot

import (
	"strings"

	"github.com/nextlevelbuilder/parley/internal/history"
)

// ParseProviderOverride extracts an inline backend override from the start of
// a question: "openai, draw a cat" selects openai for this one call and
// leaves the channel setting alone. Returns ("", content) when there is none.
func ParseProviderOverride(content string) (provider, rest string) {
	lower := strings.ToLower(content)
	for _, name := range history.ValidProviders {
		if strings.HasPrefix(lower, name+",") {
			return name, strings.TrimSpace(content[len(name)+1:])
		}
	}
	return "", content
}
