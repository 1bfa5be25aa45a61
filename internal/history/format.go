package history

import "log/slog"

// PrepareMessagesForAPI serializes a channel window into the message list an
// LLM call expects. The first entry is always the channel's current system
// prompt (the live value, never a historical one). Sentinel records, noise
// and settings confirmations are all excluded; only real conversation goes to
// the model. Deterministic for a given window and prompt, no side effects.
func (s *Store) PrepareMessagesForAPI(channelID string) []Message {
	out := []Message{{Role: RoleSystem, Content: s.SystemPrompt(channelID)}}

	filtered := 0
	for _, m := range s.History(channelID) {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			filtered++
			continue
		}
		if IsSettingsPersistenceMessage(m.Content) {
			filtered++
			continue
		}
		if m.Role == RoleAssistant && IsNoiseOutput(m.Content) {
			filtered++
			continue
		}
		out = append(out, m)
	}

	slog.Debug("prepared messages for api",
		"channel", channelID, "messages", len(out)-1, "filtered", filtered)
	return out
}
