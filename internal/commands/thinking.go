package commands

import (
	"context"
	"fmt"
	"strings"
)

func (d *Dispatcher) thinking(ctx context.Context, req Request) []string {
	if len(req.Args) == 0 {
		return d.thinkingStatus(ctx, req)
	}

	var enabled bool
	switch strings.ToLower(req.Args[0]) {
	case "on", "enable", "enabled", "true", "1":
		enabled = true
	case "off", "disable", "disabled", "false", "0":
		enabled = false
	default:
		return []string{fmt.Sprintf("Invalid setting: **%s**. Use `on` or `off`.", req.Args[0])}
	}

	action := "disabled"
	if enabled {
		action = "enabled"
	}
	if !d.store.SetThinking(req.ChannelID, enabled) {
		return []string{fmt.Sprintf("DeepSeek thinking display is already **%s** in #%s",
			action, req.ChannelName)}
	}
	// "display **state**" without "is" marks this as a change confirmation
	// for recovery; the status phrasings below deliberately read differently.
	return []string{fmt.Sprintf("DeepSeek thinking display **%s** for #%s", action, req.ChannelName)}
}

func (d *Dispatcher) thinkingStatus(ctx context.Context, req Request) []string {
	state := "disabled"
	if d.store.ThinkingEnabled(req.ChannelID) {
		state = "enabled"
	}
	return []string{fmt.Sprintf("DeepSeek thinking display is currently **%s** in #%s",
		state, req.ChannelName)}
}
