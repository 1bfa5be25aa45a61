package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/parley/internal/history"
)

const (
	defaultHistoryShow = 25
	maxHistoryShow     = 50
	// Keep batched listing messages under the Discord limit with headroom.
	historyBatchLimit = 1900
)

func (d *Dispatcher) loadHistory(ctx context.Context, req Request) []string {
	d.loader.ForceReload(req.ChannelID)
	if err := d.loader.LoadChannelHistory(ctx, req.ChannelID, false); err != nil {
		return []string{fmt.Sprintf("History load failed for #%s.", req.ChannelName)}
	}
	return []string{fmt.Sprintf("Loaded %d messages from channel history.",
		d.store.Len(req.ChannelID))}
}

func (d *Dispatcher) cleanHistory(ctx context.Context, req Request) []string {
	if d.store.Len(req.ChannelID) == 0 {
		return nil
	}
	_, after, removed := d.store.Filter(req.ChannelID, func(m history.Message) bool {
		switch m.Role {
		case history.RoleUser:
			return !history.IsAdminCommand(m.Content)
		case history.RoleAssistant:
			return !history.IsNoiseOutput(m.Content)
		case history.RoleSystem:
			return m.IsSystemUpdate()
		}
		return true
	})
	return []string{fmt.Sprintf(
		"Cleaned history: removed %d command and history output messages, %d messages remaining.",
		removed, after)}
}

func (d *Dispatcher) showHistory(ctx context.Context, req Request) []string {
	filtered := listableHistory(d.store.History(req.ChannelID))
	if len(filtered) == 0 {
		return nil
	}

	count := defaultHistoryShow
	if len(req.Args) > 0 {
		if n, err := strconv.Atoi(req.Args[0]); err == nil && n > 0 {
			count = n
		}
	}
	if count > maxHistoryShow {
		count = maxHistoryShow
	}
	if count > len(filtered) {
		count = len(filtered)
	}
	start := len(filtered) - count

	replies := []string{fmt.Sprintf("**Conversation History** - Showing %d of %d messages",
		count, len(filtered))}

	var batch strings.Builder
	for i, m := range filtered[start:] {
		entry := formatHistoryEntry(start+i+1, m)
		if batch.Len()+len(entry) > historyBatchLimit {
			replies = append(replies, batch.String())
			batch.Reset()
		}
		batch.WriteString(entry)
	}
	if batch.Len() > 0 {
		replies = append(replies, batch.String())
	}
	return replies
}

// listableHistory drops entries that would make the listing self-referential:
// history commands, empty or noise bot output, and non-sentinel system rows.
func listableHistory(window []history.Message) []history.Message {
	var out []history.Message
	for _, m := range window {
		lower := strings.ToLower(m.Content)
		if m.Role == history.RoleUser &&
			(strings.Contains(lower, "!history") ||
				strings.Contains(lower, "!cleanhistory") ||
				strings.Contains(lower, "!loadhistory")) {
			continue
		}
		if m.Role == history.RoleAssistant &&
			(strings.TrimSpace(m.Content) == "" || history.IsNoiseOutput(m.Content)) {
			continue
		}
		if m.Role == history.RoleSystem && !m.IsSystemUpdate() {
			continue
		}
		out = append(out, m)
	}
	return out
}

func formatHistoryEntry(number int, m history.Message) string {
	prefix := "User"
	content := m.Content
	switch m.Role {
	case history.RoleAssistant:
		prefix = "Bot"
	case history.RoleSystem:
		prefix = "System"
		if m.IsSystemUpdate() {
			content = "Set prompt: " + strings.TrimPrefix(content, history.SystemUpdatePrefix)
		}
	}
	return fmt.Sprintf("**%d.** %s%s: %s\n\n", number, history.HistoryLinePrefix, prefix, content)
}
