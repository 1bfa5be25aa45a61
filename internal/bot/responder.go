package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/parley/internal/bus"
	"github.com/nextlevelbuilder/parley/internal/history"
	"github.com/nextlevelbuilder/parley/internal/providers"
)

// respond runs one LLM round trip: prepare context, pick the backend, call
// it, deliver the answer and record it in the window. Failure replies use the
// "API error" prefix so they are recognizable noise on a later reload and
// are never stored.
func (e *Engine) respond(ctx context.Context, msg bus.InboundMessage, overrideProvider string) {
	e.gateway.SendTyping(msg.ChannelID)

	requestID := uuid.NewString()
	name := overrideProvider
	if name == "" {
		name = e.store.EffectiveProvider(msg.ChannelID)
	}

	ctx, span := e.tracer.Start(ctx, "llm.chat", trace.WithAttributes(
		attribute.String("channel.id", msg.ChannelID),
		attribute.String("request.id", requestID),
		attribute.String("provider.requested", name),
	))
	defer span.End()

	provider, err := e.registry.Get(name)
	if err != nil {
		if !errors.Is(err, providers.ErrUnknownProvider) {
			e.sendError(msg.ChannelID, err)
			return
		}
		slog.Warn("provider unavailable, using default",
			"requested", name, "channel", msg.ChannelID)
		if provider, err = e.registry.Default(); err != nil {
			e.sendError(msg.ChannelID, err)
			return
		}
	}

	apiMessages := e.store.PrepareMessagesForAPI(msg.ChannelID)
	if e.budget != nil {
		apiMessages = e.budget.Fit(apiMessages)
	}

	req := providers.ChatRequest{Messages: make([]providers.ChatMessage, len(apiMessages))}
	for i, m := range apiMessages {
		req.Messages[i] = providers.ChatMessage{Role: string(m.Role), Content: m.Content, Name: m.Name}
	}

	slog.Info("llm request",
		"request_id", requestID, "provider", provider.Name(),
		"channel", msg.ChannelID, "messages", len(req.Messages))

	resp, err := provider.Chat(ctx, req)
	if err != nil {
		slog.Error("llm request failed",
			"request_id", requestID, "provider", provider.Name(), "error", err)
		e.sendError(msg.ChannelID, err)
		return
	}
	e.usage.Record(provider.Name(), resp.Usage)

	if resp.Reasoning != "" && e.store.ThinkingEnabled(msg.ChannelID) {
		e.bus.PublishOutbound(bus.OutboundMessage{
			ChannelID: msg.ChannelID,
			Content:   fmt.Sprintf("%s %s", history.ReasoningPrefix, resp.Reasoning),
		})
	}

	e.bus.PublishOutbound(bus.OutboundMessage{ChannelID: msg.ChannelID, Content: resp.Content})
	e.store.Append(msg.ChannelID, history.NewAssistantMessage(resp.Content))
	e.store.Trim(msg.ChannelID, e.maxHistory)
}

func (e *Engine) sendError(channelID string, err error) {
	e.bus.PublishOutbound(bus.OutboundMessage{
		ChannelID: channelID,
		Content:   fmt.Sprintf("%s: %v", history.APIErrorPrefix, err),
		Ephemeral: true,
	})
}
