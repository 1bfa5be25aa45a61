package history

import "strings"

// The classifier splits bot output into two categories with different
// retention rules:
//
//   - noise: status listings, help text, errors. Deleted from the window at
//     cleanup and never fed to the LLM.
//   - settings persistence: confirmations that *change* a setting. Kept in the
//     window so the parser can recover the setting after a restart, but
//     stripped from the LLM payload.
//
// The categories must never overlap; PrepareMessagesForAPI and the load-time
// cleanup both rely on that.

// HistoryLinePrefix starts every line of !history output so the listing can
// be recognized and excluded later.
const HistoryLinePrefix = "➤ "

// Prefixes of bot messages that carry non-conversational payloads.
const (
	ReasoningPrefix = "[DEEPSEEK_REASONING]:"
	APIErrorPrefix  = "API error"
)

// IsAdminCommand reports whether text is a bot command, either typed directly
// or embedded after a speaker name ("alice: !history"). The !setprompt command
// is exempt: an unconfirmed !setprompt in the transcript is the fallback
// source for prompt recovery and must stay visible to the parser.
func IsAdminCommand(text string) bool {
	if strings.HasPrefix(text, "!setprompt") {
		return false
	}
	return strings.HasPrefix(text, "!") ||
		strings.Contains(text, ": !") ||
		strings.HasPrefix(text, "/")
}

// noisePattern matches one shape of the bot's own informational output.
type noisePattern struct {
	prefix string // matches when the text starts with this
	all    []string
}

// The phrasings below mirror the bot's reply templates exactly. They are a
// contract with old transcripts: edit the reply template and this table
// together or recognition silently breaks.
var noisePatterns = []noisePattern{
	{all: []string{"**Conversation History**"}},
	{all: []string{HistoryLinePrefix}},
	{prefix: "**1."},
	{prefix: "**2."},
	{all: []string{"Loaded ", " messages from channel history"}},
	{all: []string{"History load failed"}},
	{all: []string{"Cleaned history: removed "}},
	{all: []string{"**History Loading Status**"}},
	{all: []string{"Auto-response is currently "}},
	{all: []string{"Current system prompt for"}},
	{all: []string{"System prompt unchanged"}},
	// "set to default" covers both "reset to default." and the
	// "is already set to default." no-op echo.
	{all: []string{"System prompt for", "set to default"}},
	{all: []string{"AI provider for"}},
	{all: []string{"Current AI provider for"}},
	{all: []string{"DeepSeek thinking display is "}},
	{all: []string{"Invalid AI provider:"}},
	{all: []string{"Invalid setting:"}},
	{all: []string{"**Bot Status for #"}},
	{prefix: ReasoningPrefix},
	{prefix: APIErrorPrefix},
}

// IsNoiseOutput reports whether text is bot-generated status output that must
// never re-enter the LLM context. Prompt-update confirmations are exempt
// before anything else: they anchor settings recovery.
func IsNoiseOutput(text string) bool {
	if strings.Contains(text, "System prompt updated for") {
		return false
	}
	// Change confirmations are a separate category with their own retention.
	if IsSettingsPersistenceMessage(text) {
		return false
	}
	for _, p := range noisePatterns {
		if p.prefix != "" {
			if strings.HasPrefix(text, p.prefix) {
				return true
			}
			continue
		}
		matched := true
		for _, sub := range p.all {
			if !strings.Contains(text, sub) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// IsSettingsPersistenceMessage reports whether text is a confirmation that
// changed a setting. These stay in the window (the parser reads them back
// after a restart) but are excluded from the LLM payload.
func IsSettingsPersistenceMessage(text string) bool {
	if strings.Contains(text, "Auto-response is now ") {
		return true
	}
	if providerChangeRe.MatchString(text) || providerResetRe.MatchString(text) {
		return true
	}
	if strings.Contains(text, "DeepSeek thinking display **") {
		return true
	}
	return false
}
