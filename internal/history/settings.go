package history

import (
	"log/slog"
	"regexp"
	"strings"
)

// ValidProviders are the backend names a transcript confirmation may carry.
// A recovered name outside this list is logged and ignored.
var ValidProviders = []string{"openai", "anthropic", "deepseek"}

func IsValidProvider(name string) bool {
	for _, p := range ValidProviders {
		if p == name {
			return true
		}
	}
	return false
}

// Confirmation-message patterns. Like the noise table these are a contract
// with old transcripts and must track the reply templates byte for byte
// (including the ** bold markers).
var (
	providerChangeRe  = regexp.MustCompile(`AI provider for #[\w-]+ changed from \*?\*?\w+\*?\*? to \*?\*?(\w+)\*?\*?`)
	providerResetRe   = regexp.MustCompile(`AI provider for #[\w-]+ reset from \*?\*?\w+\*?\*? to default \(\*?\*?(\w+)\*?\*?\)`)
	providerDefaultRe = regexp.MustCompile(`default \(\*?\*?(\w+)\*?\*?\)`)
)

const setPromptCommand = "!setprompt "

// ParsedSettings holds the most recent value of each setting recovered from a
// transcript. Nil means the transcript contained no change for that setting
// and the process default applies.
type ParsedSettings struct {
	SystemPrompt *string
	Provider     *string
	AutoRespond  *bool
	Thinking     *bool

	// PromptFromCommand is set when the prompt came from a raw !setprompt
	// with no later confirmation; the loader then writes a sentinel record
	// so the value survives the next reload too.
	PromptFromCommand bool
}

// FoundCount returns how many setting types were recovered.
func (p ParsedSettings) FoundCount() int {
	n := 0
	if p.SystemPrompt != nil {
		n++
	}
	if p.Provider != nil {
		n++
	}
	if p.AutoRespond != nil {
		n++
	}
	if p.Thinking != nil {
		n++
	}
	return n
}

// settingMatcher recognizes one setting type in a transcript message.
// found() gates the scan: once a type has a value, newer-wins ordering means
// older matches for it are skipped.
type settingMatcher struct {
	name  string
	found func(p *ParsedSettings) bool
	match func(m RawMessage, p *ParsedSettings) bool
}

var settingMatchers = []settingMatcher{
	{
		name:  "system_prompt",
		found: func(p *ParsedSettings) bool { return p.SystemPrompt != nil },
		match: matchSystemPrompt,
	},
	{
		name:  "ai_provider",
		found: func(p *ParsedSettings) bool { return p.Provider != nil },
		match: matchProvider,
	},
	{
		name:  "auto_respond",
		found: func(p *ParsedSettings) bool { return p.AutoRespond != nil },
		match: matchAutoRespond,
	},
	{
		name:  "thinking",
		found: func(p *ParsedSettings) bool { return p.Thinking != nil },
		match: matchThinking,
	},
}

// ParseSettings scans a chronological transcript newest-first and returns the
// most recent value of each setting. The scan stops for a setting type as
// soon as it is found, and stops entirely once all types are found.
func ParseSettings(messages []RawMessage, channelID string) ParsedSettings {
	var parsed ParsedSettings

	for i := len(messages) - 1; i >= 0; i-- {
		remaining := 0
		for _, sm := range settingMatchers {
			if sm.found(&parsed) {
				continue
			}
			remaining++
			if sm.match(messages[i], &parsed) {
				slog.Debug("recovered setting from transcript",
					"channel", channelID, "setting", sm.name, "offset_from_newest", len(messages)-1-i)
				remaining--
			}
		}
		if remaining == 0 && parsed.FoundCount() == len(settingMatchers) {
			break
		}
	}

	slog.Info("transcript settings scan complete",
		"channel", channelID, "messages", len(messages), "found", parsed.FoundCount())
	return parsed
}

// matchSystemPrompt handles both sources of a prompt value. A raw !setprompt
// command counts because the command may have executed without its
// confirmation surviving; the confirmation form is canonical when present
// (it sits closer to the newest end, so newest-first order prefers it for
// the same logical change).
func matchSystemPrompt(m RawMessage, p *ParsedSettings) bool {
	if !m.IsSelf && strings.HasPrefix(m.Content, setPromptCommand) {
		prompt := strings.TrimSpace(m.Content[len(setPromptCommand):])
		if prompt == "" {
			return false
		}
		p.SystemPrompt = &prompt
		p.PromptFromCommand = true
		return true
	}

	if m.IsSelf && strings.Contains(m.Content, "System prompt updated for") {
		prompt, ok := ExtractPromptFromConfirmation(m.Content)
		if !ok {
			return false
		}
		p.SystemPrompt = &prompt
		p.PromptFromCommand = false
		return true
	}
	return false
}

// ExtractPromptFromConfirmation pulls the prompt text out of a
// "System prompt updated for #ch.\nNew prompt: **text**" confirmation.
func ExtractPromptFromConfirmation(content string) (string, bool) {
	_, after, ok := strings.Cut(content, "New prompt:")
	if !ok {
		return "", false
	}
	prompt := strings.TrimSpace(strings.ReplaceAll(after, "**", ""))
	if prompt == "" {
		return "", false
	}
	return prompt, true
}

func matchProvider(m RawMessage, p *ParsedSettings) bool {
	if !m.IsSelf {
		return false
	}
	if match := providerChangeRe.FindStringSubmatch(m.Content); match != nil {
		name := match[1]
		if name == "default" {
			if dm := providerDefaultRe.FindStringSubmatch(m.Content); dm != nil {
				name = dm[1]
			}
		}
		p.Provider = &name
		return true
	}
	if match := providerResetRe.FindStringSubmatch(m.Content); match != nil {
		name := match[1]
		p.Provider = &name
		return true
	}
	return false
}

func matchAutoRespond(m RawMessage, p *ParsedSettings) bool {
	if !m.IsSelf || !strings.Contains(m.Content, "Auto-response is now ") {
		return false
	}
	switch {
	case strings.Contains(m.Content, "**enabled**"):
		v := true
		p.AutoRespond = &v
		return true
	case strings.Contains(m.Content, "**disabled**"):
		v := false
		p.AutoRespond = &v
		return true
	}
	return false
}

func matchThinking(m RawMessage, p *ParsedSettings) bool {
	// "display **enabled**" is the change form; "display is currently" is a
	// status echo and classified as noise instead.
	if !m.IsSelf || !strings.Contains(m.Content, "DeepSeek thinking display **") {
		return false
	}
	switch {
	case strings.Contains(m.Content, "**enabled**"):
		v := true
		p.Thinking = &v
		return true
	case strings.Contains(m.Content, "**disabled**"):
		v := false
		p.Thinking = &v
		return true
	}
	return false
}
