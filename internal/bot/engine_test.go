package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextlevelbuilder/parley/internal/bus"
	"github.com/nextlevelbuilder/parley/internal/commands"
	"github.com/nextlevelbuilder/parley/internal/config"
	"github.com/nextlevelbuilder/parley/internal/history"
	"github.com/nextlevelbuilder/parley/internal/providers"
)

type fakeGateway struct {
	typing atomic.Int32
}

func (g *fakeGateway) SendTyping(string) { g.typing.Add(1) }

type fakeProvider struct {
	name      string
	reply     string
	reasoning string
	err       error
	calls     atomic.Int32
	lastReq   providers.ChatRequest
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.calls.Add(1)
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return &providers.ChatResponse{
		Content:   p.reply,
		Reasoning: p.reasoning,
		Usage:     providers.Usage{TotalTokens: 10},
	}, nil
}

type fakeFetcher struct {
	messages []history.RawMessage
	calls    atomic.Int32
}

func (f *fakeFetcher) FetchAllMessages(ctx context.Context, channelID string) ([]history.RawMessage, error) {
	f.calls.Add(1)
	return f.messages, nil
}

type fixture struct {
	engine   *Engine
	bus      *bus.MessageBus
	store    *history.Store
	gateway  *fakeGateway
	provider *fakeProvider
	fetcher  *fakeFetcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := history.NewStore(history.StoreConfig{
		DefaultSystemPrompt: "default prompt",
		DefaultProvider:     "openai",
	})
	fetcher := &fakeFetcher{}
	loader := history.NewLoader(store, fetcher, time.Second, 10)

	registry := providers.NewRegistry(&config.Config{
		Providers: config.ProvidersConfig{Default: "openai"},
	})
	provider := &fakeProvider{name: "openai", reply: "the answer"}
	registry.Register(provider)

	mb := bus.New()
	gateway := &fakeGateway{}
	engine := NewEngine(EngineConfig{
		Store:      store,
		Loader:     loader,
		Dispatcher: commands.NewDispatcher(store, loader),
		Registry:   registry,
		Usage:      providers.NewUsageAccumulator(),
		Bus:        mb,
		Gateway:    gateway,
		BotPrefix:  "Bot, ",
		MaxHistory: 10,
	})
	return &fixture{engine: engine, bus: mb, store: store, gateway: gateway,
		provider: provider, fetcher: fetcher}
}

func inbound(content string) bus.InboundMessage {
	return bus.InboundMessage{
		ID: "m1", ChannelID: "c1", ChannelName: "general",
		AuthorID: "u1", Author: "alice", IsAdmin: true, Content: content,
	}
}

func (f *fixture) drainOutbound(t *testing.T) []bus.OutboundMessage {
	t.Helper()
	var out []bus.OutboundMessage
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		msg, ok := f.bus.ConsumeOutbound(ctx)
		cancel()
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func TestHandle_PrefixMessageGetsReply(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), inbound("Bot, what is the capital of France?"))

	out := f.drainOutbound(t)
	if len(out) != 1 || out[0].Content != "the answer" {
		t.Fatalf("outbound = %v", out)
	}
	if f.provider.calls.Load() != 1 {
		t.Errorf("provider calls = %d", f.provider.calls.Load())
	}

	window := f.store.History("c1")
	if len(window) != 2 {
		t.Fatalf("window = %v", window)
	}
	if window[0].Role != history.RoleUser || !strings.Contains(window[0].Content, "Bot, what is") {
		t.Errorf("user entry = %+v", window[0])
	}
	if window[1].Role != history.RoleAssistant || window[1].Content != "the answer" {
		t.Errorf("assistant entry = %+v", window[1])
	}
	if f.gateway.typing.Load() == 0 {
		t.Error("typing indicator never shown")
	}
}

func TestHandle_SystemPromptLeadsPayload(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), inbound("Bot, hello"))

	msgs := f.provider.lastReq.Messages
	if len(msgs) == 0 || msgs[0].Role != "system" || msgs[0].Content != "default prompt" {
		t.Errorf("payload head = %+v", msgs)
	}
}

func TestHandle_PlainMessageStoredWithoutReply(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), inbound("just chatting"))

	if out := f.drainOutbound(t); len(out) != 0 {
		t.Errorf("unexpected replies: %v", out)
	}
	if f.provider.calls.Load() != 0 {
		t.Error("LLM called without prefix or auto-respond")
	}
	if f.store.Len("c1") != 1 {
		t.Errorf("window len = %d, want 1", f.store.Len("c1"))
	}
}

func TestHandle_AutoRespond(t *testing.T) {
	f := newFixture(t)
	f.store.SetAutoRespond("c1", true)
	f.engine.Handle(context.Background(), inbound("anyone know a good book?"))

	out := f.drainOutbound(t)
	if len(out) != 1 || out[0].Content != "the answer" {
		t.Fatalf("outbound = %v", out)
	}
}

func TestHandle_CommandNeverStored(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), inbound("!autostatus"))

	out := f.drainOutbound(t)
	if len(out) != 1 || !strings.Contains(out[0].Content, "Auto-response is currently") {
		t.Fatalf("outbound = %v", out)
	}
	if f.store.Len("c1") != 0 {
		t.Errorf("command leaked into window: %v", f.store.History("c1"))
	}
}

func TestHandle_SlashIgnored(t *testing.T) {
	f := newFixture(t)
	f.engine.Handle(context.Background(), inbound("/giphy cats"))

	if f.store.Len("c1") != 0 || len(f.drainOutbound(t)) != 0 {
		t.Error("slash command was processed")
	}
	if f.fetcher.calls.Load() != 0 {
		t.Error("slash command triggered a history load")
	}
}

func TestHandle_AttachmentsSkippedButCommandsWork(t *testing.T) {
	f := newFixture(t)
	msg := inbound("look at this")
	msg.HasAttachments = true
	f.engine.Handle(context.Background(), msg)
	if f.store.Len("c1") != 0 {
		t.Error("attachment message stored")
	}

	cmd := inbound("!autostatus")
	cmd.HasAttachments = true
	f.engine.Handle(context.Background(), cmd)
	if out := f.drainOutbound(t); len(out) != 1 {
		t.Errorf("command with attachment not dispatched: %v", out)
	}
}

func TestHandle_LazyLoadOnce(t *testing.T) {
	f := newFixture(t)
	f.fetcher.messages = []history.RawMessage{
		{Content: "just chatting", Author: "alice"}, // the triggering message, newest
		{Content: "earlier talk", Author: "bob"},
	}

	f.engine.Handle(context.Background(), inbound("just chatting"))
	if f.fetcher.calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", f.fetcher.calls.Load())
	}
	// Recovered "earlier talk" plus the live append of the trigger.
	if f.store.Len("c1") != 2 {
		t.Errorf("window len = %d, want 2: %v", f.store.Len("c1"), f.store.History("c1"))
	}

	f.engine.Handle(context.Background(), inbound("more chat"))
	if f.fetcher.calls.Load() != 1 {
		t.Errorf("fetch calls = %d after second message, want still 1", f.fetcher.calls.Load())
	}
}

func TestHandle_ProviderOverride(t *testing.T) {
	f := newFixture(t)
	deepseek := &fakeProvider{name: "deepseek", reply: "from deepseek"}
	f.engine.registry.Register(deepseek)

	f.engine.Handle(context.Background(), inbound("Bot, deepseek, explain recursion"))

	out := f.drainOutbound(t)
	if len(out) != 1 || out[0].Content != "from deepseek" {
		t.Fatalf("outbound = %v", out)
	}
	if f.provider.calls.Load() != 0 || deepseek.calls.Load() != 1 {
		t.Errorf("calls: openai=%d deepseek=%d", f.provider.calls.Load(), deepseek.calls.Load())
	}
	// One-shot: the channel setting is untouched.
	if f.store.Provider("c1") != "" {
		t.Errorf("override leaked into channel setting: %q", f.store.Provider("c1"))
	}
}

func TestHandle_UnknownOverrideFallsBack(t *testing.T) {
	f := newFixture(t)
	f.store.SetProvider("c1", "anthropic") // configured but not registered
	f.engine.Handle(context.Background(), inbound("Bot, hello"))

	out := f.drainOutbound(t)
	if len(out) != 1 || out[0].Content != "the answer" {
		t.Fatalf("outbound = %v", out)
	}
	if f.provider.calls.Load() != 1 {
		t.Error("default provider not used as fallback")
	}
}

func TestHandle_APIErrorNotStored(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("rate limited upstream")
	f.engine.Handle(context.Background(), inbound("Bot, hello"))

	out := f.drainOutbound(t)
	if len(out) != 1 || !strings.HasPrefix(out[0].Content, history.APIErrorPrefix) {
		t.Fatalf("outbound = %v", out)
	}
	if !history.IsNoiseOutput(out[0].Content) {
		t.Error("error reply would survive a reload")
	}
	for _, m := range f.store.History("c1") {
		if m.Role == history.RoleAssistant {
			t.Errorf("error response stored as assistant message: %q", m.Content)
		}
	}
}

func TestHandle_ReasoningShownWhenEnabled(t *testing.T) {
	f := newFixture(t)
	f.provider.reasoning = "step by step"
	f.engine.Handle(context.Background(), inbound("Bot, hello"))
	out := f.drainOutbound(t)
	if len(out) != 1 {
		t.Fatalf("reasoning shown while disabled: %v", out)
	}

	f.store.SetThinking("c1", true)
	f.engine.Handle(context.Background(), inbound("Bot, again"))
	out = f.drainOutbound(t)
	if len(out) != 2 {
		t.Fatalf("outbound = %v", out)
	}
	want := history.ReasoningPrefix + " step by step"
	if out[0].Content != want {
		t.Errorf("reasoning message = %q, want %q", out[0].Content, want)
	}
	for _, m := range f.store.History("c1") {
		if strings.HasPrefix(m.Content, history.ReasoningPrefix) {
			t.Error("reasoning stored in window")
		}
	}
}

func TestHandle_WindowStaysBounded(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 30; i++ {
		f.engine.Handle(context.Background(), inbound(fmt.Sprintf("message %d", i)))
	}
	if n := f.store.Len("c1"); n > 10 {
		t.Errorf("window len = %d, want <= 10", n)
	}
	window := f.store.History("c1")
	if !strings.Contains(window[len(window)-1].Content, "message 29") {
		t.Error("newest message missing after trim")
	}
}

func TestParseProviderOverride(t *testing.T) {
	cases := []struct {
		in       string
		provider string
		rest     string
	}{
		{"openai, draw a cat", "openai", "draw a cat"},
		{"ANTHROPIC, write a poem", "anthropic", "write a poem"},
		{"hello world", "", "hello world"},
		{"deepseeker, hi", "", "deepseeker, hi"},
	}
	for _, c := range cases {
		p, rest := ParseProviderOverride(c.in)
		if p != c.provider || rest != c.rest {
			t.Errorf("ParseProviderOverride(%q) = (%q, %q), want (%q, %q)",
				c.in, p, rest, c.provider, c.rest)
		}
	}
}
