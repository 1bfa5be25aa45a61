package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/parley/internal/history"
)

func (d *Dispatcher) status(ctx context.Context, req Request) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Bot Status for #%s**\n\n", req.ChannelName)

	kind := "Default"
	if d.store.HasCustomPrompt(req.ChannelID) {
		kind = "Custom"
	}
	fmt.Fprintf(&b, "**System Prompt:** %s\n```%s```\n\n", kind, d.store.SystemPrompt(req.ChannelID))

	if p := d.store.Provider(req.ChannelID); p == "" {
		fmt.Fprintf(&b, "**AI Provider:** %s (default)\n", d.store.DefaultProvider())
	} else if p == d.store.DefaultProvider() {
		fmt.Fprintf(&b, "**AI Provider:** %s (matches default)\n", p)
	} else {
		fmt.Fprintf(&b, "**AI Provider:** %s (channel setting)\n", p)
		fmt.Fprintf(&b, "Default: %s\n", d.store.DefaultProvider())
	}

	fmt.Fprintf(&b, "**Auto-Response:** %s\n", onOff(d.store.AutoRespond(req.ChannelID)))
	fmt.Fprintf(&b, "**Thinking Display:** %s", onOff(d.store.ThinkingEnabled(req.ChannelID)))
	return []string{b.String()}
}

func (d *Dispatcher) loadingStatus(ctx context.Context, req Request) []string {
	statuses := d.store.LoadingStatus()
	var b strings.Builder
	fmt.Fprintf(&b, "**History Loading Status** - %d channel(s) loaded\n", len(statuses))
	for _, st := range statuses {
		fmt.Fprintf(&b, "%s%s: %d messages, loaded at %s\n",
			history.HistoryLinePrefix, st.ChannelID, st.WindowSize,
			st.LoadedAt.Format("15:04:05"))
	}
	return []string{b.String()}
}

func onOff(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}
