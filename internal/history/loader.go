package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrLockTimeout is returned when another load holds the channel lock past
// the configured timeout. The channel stays unloaded; a later message
// retries.
var ErrLockTimeout = errors.New("history: timed out waiting for channel load lock")

// Fetcher pulls the complete transcript of a channel from the chat service,
// newest message first. Implementations must not cap the fetch: the most
// recent settings confirmation can sit arbitrarily far back.
type Fetcher interface {
	FetchAllMessages(ctx context.Context, channelID string) ([]RawMessage, error)
}

// Loader reconstructs a channel's window and settings from the remote
// transcript, once per channel until a forced reload.
type Loader struct {
	store       *Store
	fetcher     Fetcher
	lockTimeout time.Duration
	maxHistory  int
	tracer      trace.Tracer
}

func NewLoader(store *Store, fetcher Fetcher, lockTimeout time.Duration, maxHistory int) *Loader {
	return &Loader{
		store:       store,
		fetcher:     fetcher,
		lockTimeout: lockTimeout,
		maxHistory:  maxHistory,
		tracer:      otel.Tracer("parley/history"),
	}
}

// LoadChannelHistory runs the full reconstruction pipeline for a channel:
// fetch, settings scan, conversion, cleanup, trim — strictly in that order.
// Trimming happens last so it can never discard the message a setting was
// recovered from before the scan saw it. Idempotent: a loaded channel
// returns immediately, and a caller racing a concurrent load observes the
// loaded flag after acquiring the lock and backs off without fetching.
//
// isAutomatic marks loads triggered by an incoming message; the newest
// transcript entry is then dropped because the caller is about to append
// that same message itself.
func (l *Loader) LoadChannelHistory(ctx context.Context, channelID string, isAutomatic bool) error {
	if l.store.IsLoaded(channelID) {
		return nil
	}

	ctx, span := l.tracer.Start(ctx, "history.load",
		trace.WithAttributes(
			attribute.String("channel.id", channelID),
			attribute.Bool("load.automatic", isAutomatic),
		))
	defer span.End()

	lock := l.store.Lock(channelID)
	lockCtx, cancel := context.WithTimeout(ctx, l.lockTimeout)
	defer cancel()
	if err := lock.Acquire(lockCtx); err != nil {
		slog.Warn("channel load lock timeout", "channel", channelID, "timeout", l.lockTimeout)
		return fmt.Errorf("%w: %s", ErrLockTimeout, channelID)
	}
	defer lock.Release()

	// A racing loader may have finished while we waited.
	if l.store.IsLoaded(channelID) {
		slog.Debug("channel loaded while waiting for lock", "channel", channelID)
		return nil
	}

	converted, skipped, err := l.loadFromRemote(ctx, channelID, isAutomatic)
	if err != nil {
		// Not marked loaded: the next message retries the whole pipeline.
		slog.Error("channel history load failed", "channel", channelID, "error", err)
		return err
	}

	l.finalize(channelID)
	l.store.MarkLoaded(channelID, time.Now())

	slog.Info("channel history loaded",
		"channel", channelID, "converted", converted, "skipped", skipped,
		"window", l.store.Len(channelID))
	return nil
}

// loadFromRemote fetches the transcript, applies recovered settings and
// converts the remaining messages into the window. Per-message conversion
// problems are logged and skipped; only a fetch failure aborts the load.
func (l *Loader) loadFromRemote(ctx context.Context, channelID string, isAutomatic bool) (converted, skipped int, err error) {
	raws, err := l.fetcher.FetchAllMessages(ctx, channelID)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch transcript for %s: %w", channelID, err)
	}

	// The fetcher returns newest first; drop the triggering message, then
	// put the transcript in chronological order.
	if isAutomatic && len(raws) > 0 {
		raws = raws[1:]
		skipped++
	}
	chrono := make([]RawMessage, len(raws))
	for i, m := range raws {
		chrono[len(raws)-1-i] = m
	}

	// Settings first, over the unfiltered transcript: conversion-time skips
	// must never hide a confirmation from the scan.
	parsed := ParseSettings(chrono, channelID)
	l.applySettings(channelID, parsed)

	for _, m := range chrono {
		if l.convertAndStore(channelID, m, len(chrono)) {
			converted++
		} else {
			skipped++
		}
	}
	return converted, skipped, nil
}

// convertAndStore turns one transcript message into a window entry. Returns
// false when the message is dropped: commands were never conversation, the
// parser already consumed !setprompt, and noise is kept out of the window
// from the start rather than relying only on the final cleanup.
func (l *Loader) convertAndStore(channelID string, m RawMessage, total int) bool {
	if m.HasAttachments {
		return false
	}
	if strings.HasPrefix(m.Content, "!setprompt") {
		return false
	}
	if strings.HasPrefix(m.Content, "!") || strings.HasPrefix(m.Content, "/") {
		return false
	}

	if m.IsSelf {
		// Prompt confirmations become sentinel records so the value stays
		// recoverable from the window itself.
		if strings.Contains(m.Content, "System prompt updated for") {
			if prompt, ok := ExtractPromptFromConfirmation(m.Content); ok {
				l.store.Append(channelID, NewSystemUpdateMessage(prompt))
				return true
			}
			return false
		}
		if IsNoiseOutput(m.Content) {
			return false
		}
		l.store.Append(channelID, NewAssistantMessage(m.Content))
		return true
	}

	l.store.Append(channelID, NewUserMessage(m.Author, m.Content, total))
	return true
}

func (l *Loader) applySettings(channelID string, parsed ParsedSettings) {
	if parsed.SystemPrompt != nil {
		l.store.applyRecoveredPrompt(channelID, *parsed.SystemPrompt)
		if parsed.PromptFromCommand {
			// The command never got a confirmation; record a sentinel so the
			// value survives future reloads on its own.
			l.store.Append(channelID, NewSystemUpdateMessage(*parsed.SystemPrompt))
		}
	}
	if parsed.Provider != nil {
		if _, ok := l.store.SetProvider(channelID, *parsed.Provider); !ok {
			slog.Warn("ignoring invalid provider from transcript",
				"channel", channelID, "provider", *parsed.Provider)
		}
	}
	if parsed.AutoRespond != nil {
		l.store.SetAutoRespond(channelID, *parsed.AutoRespond)
	}
	if parsed.Thinking != nil {
		l.store.SetThinking(channelID, *parsed.Thinking)
	}
}

// finalize runs the defensive second-pass cleanup and bounds the window.
func (l *Loader) finalize(channelID string) {
	_, _, removed := l.store.Filter(channelID, func(m Message) bool {
		return !(m.Role == RoleUser && IsAdminCommand(m.Content) && !strings.HasPrefix(m.Content, "!setprompt"))
	})
	if removed > 0 {
		slog.Debug("cleanup removed residual command messages", "channel", channelID, "removed", removed)
	}
	before, after := l.store.Trim(channelID, l.maxHistory)
	if before != after {
		slog.Debug("trimmed channel window", "channel", channelID, "before", before, "after", after)
	}
}

// ForceReload drops the loaded flag and the window so the next call to
// LoadChannelHistory rebuilds both from the transcript. Settings overrides
// are kept; the reload re-derives them anyway.
func (l *Loader) ForceReload(channelID string) (clearedMessages int, wasLoaded bool) {
	wasLoaded = l.store.ClearLoaded(channelID)
	clearedMessages = l.store.Clear(channelID)
	slog.Info("forced channel reload", "channel", channelID,
		"cleared", clearedMessages, "was_loaded", wasLoaded)
	return clearedMessages, wasLoaded
}
