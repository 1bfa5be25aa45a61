package history

import "testing"

func bot(content string) RawMessage {
	return RawMessage{Content: content, Author: "parley", IsSelf: true}
}

func user(author, content string) RawMessage {
	return RawMessage{Content: content, Author: author}
}

func TestParseSettings_Empty(t *testing.T) {
	parsed := ParseSettings(nil, "c1")
	if parsed.FoundCount() != 0 {
		t.Errorf("expected no settings, found %d", parsed.FoundCount())
	}
}

// The newest change wins regardless of how many older flips precede it.
func TestParseSettings_ProviderRecency(t *testing.T) {
	msgs := []RawMessage{
		bot("AI provider for #general changed from anthropic to deepseek"),
		bot("AI provider for #general changed from deepseek to openai"),
		user("alice", "hello"),
		bot("AI provider for #general changed from openai to anthropic"),
	}
	parsed := ParseSettings(msgs, "c1")
	if parsed.Provider == nil {
		t.Fatal("expected provider to be recovered")
	}
	if *parsed.Provider != "anthropic" {
		t.Errorf("provider = %q, want anthropic (most recent change)", *parsed.Provider)
	}
}

func TestParseSettings_ProviderResetToDefault(t *testing.T) {
	msgs := []RawMessage{
		bot("AI provider for #general reset from **deepseek** to default (**openai**)."),
	}
	parsed := ParseSettings(msgs, "c1")
	if parsed.Provider == nil || *parsed.Provider != "openai" {
		t.Errorf("expected openai from default(...) resolution, got %v", parsed.Provider)
	}
}

func TestParseSettings_PromptFromConfirmation(t *testing.T) {
	msgs := []RawMessage{
		user("alice", "!setprompt You are a pirate"),
		bot("System prompt updated for #general.\nNew prompt: **You are a pirate**"),
	}
	parsed := ParseSettings(msgs, "c1")
	if parsed.SystemPrompt == nil {
		t.Fatal("expected prompt to be recovered")
	}
	if *parsed.SystemPrompt != "You are a pirate" {
		t.Errorf("prompt = %q, bold markers should be stripped", *parsed.SystemPrompt)
	}
	if parsed.PromptFromCommand {
		t.Error("confirmation is newer than the command, should not be flagged as command-sourced")
	}
}

func TestParseSettings_UnconfirmedSetPromptFallback(t *testing.T) {
	msgs := []RawMessage{
		bot("System prompt updated for #general.\nNew prompt: **old prompt**"),
		user("alice", "hi"),
		user("bob", "!setprompt You are terse"),
	}
	parsed := ParseSettings(msgs, "c1")
	if parsed.SystemPrompt == nil {
		t.Fatal("expected prompt to be recovered")
	}
	if *parsed.SystemPrompt != "You are terse" {
		t.Errorf("prompt = %q, want the newer unconfirmed command value", *parsed.SystemPrompt)
	}
	if !parsed.PromptFromCommand {
		t.Error("prompt recovered from a raw command should be flagged command-sourced")
	}
}

func TestParseSettings_AutoRespondAndThinking(t *testing.T) {
	msgs := []RawMessage{
		bot("Auto-response is now **enabled** in #general"),
		bot("DeepSeek thinking display **enabled** for #general"),
		bot("Auto-response is now **disabled** in #general"),
	}
	parsed := ParseSettings(msgs, "c1")
	if parsed.AutoRespond == nil || *parsed.AutoRespond != false {
		t.Errorf("autoRespond = %v, want false (most recent)", parsed.AutoRespond)
	}
	if parsed.Thinking == nil || *parsed.Thinking != true {
		t.Errorf("thinking = %v, want true", parsed.Thinking)
	}
}

// Status echoes report a setting without changing it; they must not feed the
// parser.
func TestParseSettings_StatusEchoesIgnored(t *testing.T) {
	msgs := []RawMessage{
		bot("Auto-response is currently **enabled** in #general"),
		bot("DeepSeek thinking display is currently **enabled** in #general"),
		bot("AI provider for #general: **openai** (default setting)"),
	}
	parsed := ParseSettings(msgs, "c1")
	if parsed.FoundCount() != 0 {
		t.Errorf("status echoes recovered %d settings, want 0", parsed.FoundCount())
	}
}

// Confirmation-shaped text typed by a user must not change settings.
func TestParseSettings_UserMessagesCannotConfirm(t *testing.T) {
	msgs := []RawMessage{
		user("mallory", "AI provider for #general changed from openai to deepseek"),
		user("mallory", "Auto-response is now **enabled** in #general"),
	}
	parsed := ParseSettings(msgs, "c1")
	if parsed.Provider != nil {
		t.Errorf("provider recovered from user message: %q", *parsed.Provider)
	}
	if parsed.AutoRespond != nil {
		t.Error("auto-respond recovered from user message")
	}
}

func TestParseSettings_HyphenatedChannelName(t *testing.T) {
	msgs := []RawMessage{
		bot("AI provider for #dev-chat changed from openai to deepseek"),
	}
	parsed := ParseSettings(msgs, "c1")
	if parsed.Provider == nil || *parsed.Provider != "deepseek" {
		t.Errorf("expected deepseek for hyphenated channel name, got %v", parsed.Provider)
	}
}

func TestExtractPromptFromConfirmation(t *testing.T) {
	prompt, ok := ExtractPromptFromConfirmation("System prompt updated for #general.\nNew prompt: **Be kind**")
	if !ok || prompt != "Be kind" {
		t.Errorf("got (%q, %v), want (Be kind, true)", prompt, ok)
	}
	if _, ok := ExtractPromptFromConfirmation("System prompt updated for #general."); ok {
		t.Error("confirmation without New prompt: section should not extract")
	}
	if _, ok := ExtractPromptFromConfirmation("New prompt: ****"); ok {
		t.Error("empty prompt after stripping should not extract")
	}
}
