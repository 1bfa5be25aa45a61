package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/parley/internal/history"
)

type fakeFetcher struct {
	messages []history.RawMessage
	err      error
}

func (f *fakeFetcher) FetchAllMessages(ctx context.Context, channelID string) ([]history.RawMessage, error) {
	return f.messages, f.err
}

func newTestDispatcher(fetcher history.Fetcher) (*Dispatcher, *history.Store) {
	store := history.NewStore(history.StoreConfig{
		DefaultSystemPrompt: "default prompt",
		DefaultProvider:     "openai",
	})
	if fetcher == nil {
		fetcher = &fakeFetcher{}
	}
	loader := history.NewLoader(store, fetcher, time.Second, 10)
	return NewDispatcher(store, loader), store
}

func adminReq() Request {
	return Request{ChannelID: "c1", ChannelName: "general", Author: "alice", IsAdmin: true}
}

func dispatch(t *testing.T, d *Dispatcher, req Request, content string) []string {
	t.Helper()
	replies, handled := d.Dispatch(context.Background(), req, content)
	if !handled {
		t.Fatalf("%q not handled", content)
	}
	return replies
}

func TestDispatch_NotACommand(t *testing.T) {
	d, _ := newTestDispatcher(nil)
	if _, handled := d.Dispatch(context.Background(), adminReq(), "hello there"); handled {
		t.Error("plain text treated as command")
	}
	if _, handled := d.Dispatch(context.Background(), adminReq(), "!nosuchcommand"); handled {
		t.Error("unknown command treated as handled")
	}
}

func TestDispatch_AdminGating(t *testing.T) {
	d, store := newTestDispatcher(nil)
	req := adminReq()
	req.IsAdmin = false

	replies := dispatch(t, d, req, "!setprompt be a pirate")
	if len(replies) != 0 {
		t.Errorf("denied command produced replies: %v", replies)
	}
	if store.HasCustomPrompt("c1") {
		t.Error("denied command still changed state")
	}

	// Read-only commands stay open to everyone.
	if replies := dispatch(t, d, req, "!getprompt"); len(replies) == 0 {
		t.Error("getprompt should work without admin")
	}
}

func TestSetPrompt_Confirmation(t *testing.T) {
	d, store := newTestDispatcher(nil)
	replies := dispatch(t, d, adminReq(), "!setprompt You are a pirate.")
	want := "System prompt updated for #general.\nNew prompt: **You are a pirate.**"
	if len(replies) != 1 || replies[0] != want {
		t.Errorf("replies = %v, want %q", replies, want)
	}
	if got := store.SystemPrompt("c1"); got != "You are a pirate." {
		t.Errorf("stored prompt = %q", got)
	}

	replies = dispatch(t, d, adminReq(), "!setprompt You are a pirate.")
	if len(replies) != 1 || !strings.Contains(replies[0], "unchanged") {
		t.Errorf("repeat set should report unchanged, got %v", replies)
	}
}

func TestResetPrompt(t *testing.T) {
	d, store := newTestDispatcher(nil)
	replies := dispatch(t, d, adminReq(), "!resetprompt")
	if replies[0] != "System prompt for #general is already set to default." {
		t.Errorf("reply = %q", replies[0])
	}

	dispatch(t, d, adminReq(), "!setprompt custom")
	replies = dispatch(t, d, adminReq(), "!resetprompt")
	if replies[0] != "System prompt for #general reset to default." {
		t.Errorf("reply = %q", replies[0])
	}
	if store.HasCustomPrompt("c1") {
		t.Error("prompt override survived reset")
	}
}

func TestSetProvider_ChangeAndValidation(t *testing.T) {
	d, store := newTestDispatcher(nil)

	replies := dispatch(t, d, adminReq(), "!setai deepseek")
	want := "AI provider for #general changed from **openai** to **deepseek**."
	if replies[0] != want {
		t.Errorf("reply = %q, want %q", replies[0], want)
	}
	if store.Provider("c1") != "deepseek" {
		t.Errorf("provider = %q", store.Provider("c1"))
	}

	replies = dispatch(t, d, adminReq(), "!setai deepseek")
	if !strings.Contains(replies[0], "already set to **deepseek** (from channel setting)") {
		t.Errorf("reply = %q", replies[0])
	}

	replies = dispatch(t, d, adminReq(), "!setai grok")
	if !strings.HasPrefix(replies[0], "Invalid AI provider: **grok**") {
		t.Errorf("reply = %q", replies[0])
	}
}

func TestResetProvider(t *testing.T) {
	d, _ := newTestDispatcher(nil)
	replies := dispatch(t, d, adminReq(), "!resetai")
	if replies[0] != "AI provider for #general is already using the default (**openai**)." {
		t.Errorf("reply = %q", replies[0])
	}

	dispatch(t, d, adminReq(), "!setai anthropic")
	replies = dispatch(t, d, adminReq(), "!resetai")
	want := "AI provider for #general reset from **anthropic** to default (**openai**)."
	if replies[0] != want {
		t.Errorf("reply = %q, want %q", replies[0], want)
	}
}

func TestAutoRespond_ToggleAndStatus(t *testing.T) {
	d, _ := newTestDispatcher(nil)
	replies := dispatch(t, d, adminReq(), "!autorespond")
	if replies[0] != "Auto-response is now **enabled** in #general" {
		t.Errorf("reply = %q", replies[0])
	}
	replies = dispatch(t, d, adminReq(), "!autostatus")
	if replies[0] != "Auto-response is currently **enabled** in #general" {
		t.Errorf("reply = %q", replies[0])
	}
	replies = dispatch(t, d, adminReq(), "!autorespond")
	if replies[0] != "Auto-response is now **disabled** in #general" {
		t.Errorf("reply = %q", replies[0])
	}
}

func TestThinking_Lifecycle(t *testing.T) {
	d, _ := newTestDispatcher(nil)

	replies := dispatch(t, d, adminReq(), "!thinking")
	if replies[0] != "DeepSeek thinking display is currently **disabled** in #general" {
		t.Errorf("status reply = %q", replies[0])
	}

	replies = dispatch(t, d, adminReq(), "!thinking on")
	if replies[0] != "DeepSeek thinking display **enabled** for #general" {
		t.Errorf("enable reply = %q", replies[0])
	}

	replies = dispatch(t, d, adminReq(), "!thinking on")
	if replies[0] != "DeepSeek thinking display is already **enabled** in #general" {
		t.Errorf("repeat reply = %q", replies[0])
	}

	replies = dispatch(t, d, adminReq(), "!thinking sideways")
	if !strings.HasPrefix(replies[0], "Invalid setting: **sideways**") {
		t.Errorf("invalid reply = %q", replies[0])
	}
}

func TestLoadHistory(t *testing.T) {
	fetcher := &fakeFetcher{messages: []history.RawMessage{
		{Content: "newest message", Author: "alice"},
		{Content: "older message", Author: "bob"},
	}}
	d, store := newTestDispatcher(fetcher)

	replies := dispatch(t, d, adminReq(), "!loadhistory")
	if replies[0] != "Loaded 2 messages from channel history." {
		t.Errorf("reply = %q", replies[0])
	}
	if !store.IsLoaded("c1") {
		t.Error("channel not marked loaded")
	}
}

func TestCleanHistory(t *testing.T) {
	d, store := newTestDispatcher(nil)
	store.Append("c1", history.Message{Role: history.RoleUser, Content: "alice: hi"})
	store.Append("c1", history.Message{Role: history.RoleUser, Content: "!status"})
	store.Append("c1", history.Message{Role: history.RoleAssistant, Content: "Current system prompt for #general:\n\n**x**"})
	store.Append("c1", history.Message{Role: history.RoleAssistant, Content: "a real answer"})

	replies := dispatch(t, d, adminReq(), "!cleanhistory")
	want := "Cleaned history: removed 2 command and history output messages, 2 messages remaining."
	if replies[0] != want {
		t.Errorf("reply = %q, want %q", replies[0], want)
	}
}

func TestShowHistory_Listing(t *testing.T) {
	d, store := newTestDispatcher(nil)
	store.Append("c1", history.Message{Role: history.RoleUser, Content: "alice: hi"})
	store.Append("c1", history.Message{Role: history.RoleAssistant, Content: "hello alice"})
	store.Append("c1", history.NewSystemUpdateMessage("be brief"))
	store.Append("c1", history.Message{Role: history.RoleUser, Content: "bob: !history"})

	replies := dispatch(t, d, adminReq(), "!history")
	if len(replies) < 2 {
		t.Fatalf("replies = %v", replies)
	}
	if replies[0] != "**Conversation History** - Showing 3 of 3 messages" {
		t.Errorf("header = %q", replies[0])
	}
	body := replies[1]
	if !strings.Contains(body, "**1.** "+history.HistoryLinePrefix+"User: alice: hi") {
		t.Errorf("body missing user line: %q", body)
	}
	if !strings.Contains(body, "Bot: hello alice") {
		t.Errorf("body missing bot line: %q", body)
	}
	if !strings.Contains(body, "System: Set prompt: be brief") {
		t.Errorf("body missing system line: %q", body)
	}
	if strings.Contains(body, "!history") {
		t.Errorf("listing included the command itself: %q", body)
	}
}

func TestShowHistory_CountArg(t *testing.T) {
	d, store := newTestDispatcher(nil)
	for i := 0; i < 8; i++ {
		store.Append("c1", history.Message{Role: history.RoleUser, Content: "alice: msg"})
	}
	replies := dispatch(t, d, adminReq(), "!history 3")
	if replies[0] != "**Conversation History** - Showing 3 of 8 messages" {
		t.Errorf("header = %q", replies[0])
	}
}

func TestStatus_Overview(t *testing.T) {
	d, _ := newTestDispatcher(nil)
	dispatch(t, d, adminReq(), "!setai deepseek")
	replies := dispatch(t, d, adminReq(), "!status")
	body := replies[0]
	for _, want := range []string{
		"**Bot Status for #general**",
		"**System Prompt:** Default",
		"**AI Provider:** deepseek (channel setting)",
		"Default: openai",
		"**Auto-Response:** disabled",
		"**Thinking Display:** disabled",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("status missing %q in %q", want, body)
		}
	}
}

// Every reply the bot can emit must be classified so a later reload never
// feeds it back to the LLM as conversation: change confirmations parse as
// settings persistence, everything else informational reads as noise.
func TestReplies_RoundTripThroughClassifier(t *testing.T) {
	fetcher := &fakeFetcher{}
	d, store := newTestDispatcher(fetcher)
	store.Append("c1", history.Message{Role: history.RoleUser, Content: "alice: hi"})

	settingsChanging := []string{
		"!setai deepseek",
		"!resetai",
		"!autorespond",
		"!thinking on",
	}
	for _, cmd := range settingsChanging {
		for _, reply := range dispatch(t, d, adminReq(), cmd) {
			if !history.IsSettingsPersistenceMessage(reply) {
				t.Errorf("%q reply not recognized as settings persistence: %q", cmd, reply)
			}
			if history.IsNoiseOutput(reply) {
				t.Errorf("%q reply classified as both settings and noise: %q", cmd, reply)
			}
		}
	}

	// Prompt confirmations are their own category (exempt from noise, read
	// back by recovery), so the first !setprompt is dispatched outside the
	// loops; the repeats below then exercise the no-op replies.
	dispatch(t, d, adminReq(), "!setprompt pirate mode")

	// The list repeats commands on purpose: the second run of each hits the
	// no-op branch ("unchanged", "already set to default", "already using the
	// default", "is already enabled"), which emits a different template.
	informational := []string{
		"!setprompt pirate mode",
		"!getprompt",
		"!resetprompt",
		"!resetprompt",
		"!getai",
		"!resetai",
		"!autostatus",
		"!thinking on",
		"!thinking bogus",
		"!thinkingstatus",
		"!setai grok",
		"!loadhistory",
		"!cleanhistory",
		"!history",
		"!status",
		"!loadingstatus",
	}
	for _, cmd := range informational {
		for _, reply := range dispatch(t, d, adminReq(), cmd) {
			if !history.IsNoiseOutput(reply) {
				t.Errorf("%q reply not recognized as noise: %q", cmd, reply)
			}
			if history.IsSettingsPersistenceMessage(reply) {
				t.Errorf("%q reply misread as settings persistence: %q", cmd, reply)
			}
		}
	}
}
