package discord

import "strings"

// maxMessageLen is Discord's hard limit per message.
const maxMessageLen = 2000

// SplitMessage breaks content into chunks that fit Discord's message limit.
// Each cut prefers the last sentence boundary in the chunk, then the last
// space, but only when the boundary sits past the halfway point; otherwise
// the cut is hard. Leading whitespace on continuation chunks is trimmed.
func SplitMessage(content string) []string {
	if len(content) <= maxMessageLen {
		return []string{content}
	}

	var chunks []string
	rest := content
	for len(rest) > maxMessageLen {
		cut := splitPoint(rest[:maxMessageLen])
		chunks = append(chunks, rest[:cut])
		rest = strings.TrimLeft(rest[cut:], " \n")
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

func splitPoint(window string) int {
	half := len(window) / 2
	if i := strings.LastIndex(window, ". "); i > half {
		return i + 1 // keep the period with the chunk
	}
	if i := strings.LastIndex(window, " "); i > half {
		return i
	}
	return len(window)
}
