package commands

import (
	"context"
	"fmt"
	"log/slog"
)

func (d *Dispatcher) setPrompt(ctx context.Context, req Request) []string {
	if req.Arg == "" {
		slog.Debug("setprompt without text", "channel", req.ChannelID)
		return nil
	}
	if !d.store.SetSystemPrompt(req.ChannelID, req.Arg) {
		return []string{"System prompt unchanged (same as current setting)."}
	}
	// This exact phrasing is what settings recovery matches after a restart.
	return []string{fmt.Sprintf("System prompt updated for #%s.\nNew prompt: **%s**",
		req.ChannelName, req.Arg)}
}

func (d *Dispatcher) getPrompt(ctx context.Context, req Request) []string {
	prompt := d.store.SystemPrompt(req.ChannelID)
	return []string{fmt.Sprintf("Current system prompt for #%s:\n\n**%s**", req.ChannelName, prompt)}
}

func (d *Dispatcher) resetPrompt(ctx context.Context, req Request) []string {
	if _, removed := d.store.RemoveSystemPrompt(req.ChannelID); !removed {
		return []string{fmt.Sprintf("System prompt for #%s is already set to default.", req.ChannelName)}
	}
	return []string{fmt.Sprintf("System prompt for #%s reset to default.", req.ChannelName)}
}
