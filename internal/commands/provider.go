package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/parley/internal/history"
)

func (d *Dispatcher) setProvider(ctx context.Context, req Request) []string {
	if len(req.Args) == 0 {
		return nil
	}
	name := strings.ToLower(req.Args[0])
	if !history.IsValidProvider(name) {
		return []string{fmt.Sprintf("Invalid AI provider: **%s**. Valid options: %s",
			name, strings.Join(history.ValidProviders, ", "))}
	}

	current := d.store.Provider(req.ChannelID)
	source := "channel setting"
	if current == "" {
		current = d.store.DefaultProvider()
		source = "default"
	}
	if current == name {
		return []string{fmt.Sprintf("AI provider for #%s is already set to **%s** (from %s).",
			req.ChannelName, name, source)}
	}

	d.store.SetProvider(req.ChannelID, name)
	// Recovery-matched confirmation; the "changed from X to Y" shape is load-bearing.
	return []string{fmt.Sprintf("AI provider for #%s changed from **%s** to **%s**.",
		req.ChannelName, current, name)}
}

func (d *Dispatcher) getProvider(ctx context.Context, req Request) []string {
	if p := d.store.Provider(req.ChannelID); p != "" {
		return []string{fmt.Sprintf("AI provider for #%s: **%s** (channel setting)", req.ChannelName, p)}
	}
	return []string{fmt.Sprintf("AI provider for #%s: **%s** (default setting)",
		req.ChannelName, d.store.DefaultProvider())}
}

func (d *Dispatcher) resetProvider(ctx context.Context, req Request) []string {
	removed, had := d.store.RemoveProvider(req.ChannelID)
	if !had {
		return []string{fmt.Sprintf("AI provider for #%s is already using the default (**%s**).",
			req.ChannelName, d.store.DefaultProvider())}
	}
	return []string{fmt.Sprintf("AI provider for #%s reset from **%s** to default (**%s**).",
		req.ChannelName, removed, d.store.DefaultProvider())}
}
