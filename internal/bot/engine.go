// Package bot wires the inbound message stream to history, commands and the
// LLM backends. The engine owns the per-message decision tree; the actual
// model call lives in responder.go.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/parley/internal/bus"
	"github.com/nextlevelbuilder/parley/internal/commands"
	"github.com/nextlevelbuilder/parley/internal/history"
	"github.com/nextlevelbuilder/parley/internal/providers"
)

// Gateway is the slice of the chat adapter the engine needs directly. Replies
// travel over the bus; only the typing indicator is called inline, because it
// has to show up before the slow work starts.
type Gateway interface {
	SendTyping(channelID string)
}

type Engine struct {
	store      *history.Store
	loader     *history.Loader
	dispatcher *commands.Dispatcher
	registry   *providers.Registry
	budget     *history.ContextBudget // nil disables token budgeting
	usage      *providers.UsageAccumulator
	bus        *bus.MessageBus
	gateway    Gateway
	tracer     trace.Tracer

	prefixMu  sync.RWMutex
	botPrefix string // guarded by prefixMu, hot-reloadable

	maxHistory int
}

type EngineConfig struct {
	Store      *history.Store
	Loader     *history.Loader
	Dispatcher *commands.Dispatcher
	Registry   *providers.Registry
	Budget     *history.ContextBudget
	Usage      *providers.UsageAccumulator
	Bus        *bus.MessageBus
	Gateway    Gateway
	BotPrefix  string
	MaxHistory int
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		store:      cfg.Store,
		loader:     cfg.Loader,
		dispatcher: cfg.Dispatcher,
		registry:   cfg.Registry,
		budget:     cfg.Budget,
		usage:      cfg.Usage,
		bus:        cfg.Bus,
		gateway:    cfg.Gateway,
		tracer:     otel.Tracer("parley/bot"),
		botPrefix:  cfg.BotPrefix,
		maxHistory: cfg.MaxHistory,
	}
}

// SetBotPrefix swaps the address prefix without a restart. Messages already
// in flight keep the prefix they were matched against.
func (e *Engine) SetBotPrefix(prefix string) {
	e.prefixMu.Lock()
	e.botPrefix = prefix
	e.prefixMu.Unlock()
}

func (e *Engine) prefix() string {
	e.prefixMu.RLock()
	defer e.prefixMu.RUnlock()
	return e.botPrefix
}

// Run consumes inbound messages until ctx is cancelled. Each message is
// handled on its own goroutine; the store and the per-channel load locks
// carry the synchronization.
func (e *Engine) Run(ctx context.Context) error {
	for {
		msg, ok := e.bus.ConsumeInbound(ctx)
		if !ok {
			return ctx.Err()
		}
		go e.Handle(ctx, msg)
	}
}

// Handle runs the full decision tree for one message.
func (e *Engine) Handle(ctx context.Context, msg bus.InboundMessage) {
	// Slash commands belong to other bots.
	if strings.HasPrefix(msg.Content, "/") {
		return
	}
	// Attachments carry no usable text; commands still work alongside them.
	if msg.HasAttachments {
		e.dispatchCommand(ctx, msg)
		return
	}

	// Lazy history recovery happens before anything else so commands and
	// replies always act on a reconstructed window.
	if !e.store.IsLoaded(msg.ChannelID) {
		e.gateway.SendTyping(msg.ChannelID)
		if err := e.loader.LoadChannelHistory(ctx, msg.ChannelID, true); err != nil {
			slog.Error("automatic history load failed",
				"channel", msg.ChannelID, "error", err)
			// Not fatal: the message is still handled, the next one retries.
		}
	}

	if prefix := e.prefix(); strings.HasPrefix(strings.ToLower(msg.Content), strings.ToLower(prefix)) {
		question := strings.TrimSpace(msg.Content[len(prefix):])
		e.appendUserMessage(msg)
		override, _ := ParseProviderOverride(question)
		e.respond(ctx, msg, override)
		return
	}

	if strings.HasPrefix(msg.Content, "!") {
		e.dispatchCommand(ctx, msg)
		return
	}

	e.appendUserMessage(msg)

	if e.store.AutoRespond(msg.ChannelID) && !history.IsAdminCommand(msg.Content) {
		e.respond(ctx, msg, "")
	}
}

func (e *Engine) dispatchCommand(ctx context.Context, msg bus.InboundMessage) {
	req := commands.Request{
		ChannelID:   msg.ChannelID,
		ChannelName: msg.ChannelName,
		Author:      msg.Author,
		IsAdmin:     msg.IsAdmin,
	}
	replies, handled := e.dispatcher.Dispatch(ctx, req, msg.Content)
	if !handled {
		return
	}
	for _, reply := range replies {
		e.bus.PublishOutbound(bus.OutboundMessage{ChannelID: msg.ChannelID, Content: reply})
	}
}

// appendUserMessage records the message and bounds the window. Command text
// never reaches here; the callers filter it first.
func (e *Engine) appendUserMessage(msg bus.InboundMessage) {
	e.store.Append(msg.ChannelID, history.NewUserMessage(msg.Author, msg.Content, e.store.Len(msg.ChannelID)))
	if before, after := e.store.Trim(msg.ChannelID, e.maxHistory); before != after {
		slog.Debug("trimmed window after append",
			"channel", msg.ChannelID, "before", before, "after", after)
	}
}
