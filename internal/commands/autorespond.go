package commands

import (
	"context"
	"fmt"
)

func (d *Dispatcher) toggleAutoRespond(ctx context.Context, req Request) []string {
	next := !d.store.AutoRespond(req.ChannelID)
	d.store.SetAutoRespond(req.ChannelID, next)
	state := "disabled"
	if next {
		state = "enabled"
	}
	return []string{fmt.Sprintf("Auto-response is now **%s** in #%s", state, req.ChannelName)}
}

func (d *Dispatcher) autoStatus(ctx context.Context, req Request) []string {
	state := "disabled"
	if d.store.AutoRespond(req.ChannelID) {
		state = "enabled"
	}
	return []string{fmt.Sprintf("Auto-response is currently **%s** in #%s", state, req.ChannelName)}
}
