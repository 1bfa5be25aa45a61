// Package history maintains the per-channel conversation window and the
// settings recovered from the channel transcript. The transcript is the only
// persistent store: every setting change is announced in chat with a fixed
// confirmation phrase, and after a restart those phrases are parsed back out
// of the fetched history.
package history

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// SystemUpdatePrefix marks sentinel records that carry a system prompt value
// through the transcript. Changing it breaks recovery of old transcripts.
const SystemUpdatePrefix = "SYSTEM_PROMPT_UPDATE: "

// Message is one entry of a channel window, already in the role/content shape
// an LLM call expects.
type Message struct {
	Role      Role
	Content   string
	Name      string // sanitized author name, set on user messages only
	Timestamp time.Time
}

// RawMessage is a transcript message as fetched from the chat service, before
// classification and conversion.
type RawMessage struct {
	Content        string
	Author         string // display name
	IsSelf         bool   // authored by this bot
	HasAttachments bool
	Timestamp      time.Time
}

// NewUserMessage embeds the display name in the content so the model can tell
// speakers apart. The name field must be API-safe; when the display name
// contains anything outside [A-Za-z0-9_-] a numbered fallback is used.
func NewUserMessage(displayName, content string, fallbackSeq int) Message {
	clean := sanitizeName(displayName)
	if clean == "" || clean != displayName {
		clean = fmt.Sprintf("user_%d", fallbackSeq)
	}
	return Message{
		Role:      RoleUser,
		Content:   fmt.Sprintf("%s: %s", displayName, content),
		Name:      clean,
		Timestamp: time.Now(),
	}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// NewSystemUpdateMessage builds a sentinel record. It is never sent to the
// LLM; it exists so the prompt value can be re-read from the window.
func NewSystemUpdateMessage(prompt string) Message {
	return Message{
		Role:      RoleSystem,
		Content:   SystemUpdatePrefix + prompt,
		Timestamp: time.Now(),
	}
}

// IsSystemUpdate reports whether m is a sentinel prompt record.
func (m Message) IsSystemUpdate() bool {
	return m.Role == RoleSystem && strings.HasPrefix(m.Content, SystemUpdatePrefix)
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
