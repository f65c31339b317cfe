package channels

import (
	"fmt"
	"unicode/utf8"
)

// FormatHeader returns the attribution line of a job message.
func FormatHeader(agent, job string) string {
	return fmt.Sprintf("🤖 [%s/%s]", agent, job)
}

// FormatReply returns the attribution line of a direct agent reply.
func FormatReply(agent string) string {
	return fmt.Sprintf("💬 [%s · reply]", agent)
}

// WithHeader prepends header to text separated by a blank line.
func WithHeader(header, text string) string {
	if header == "" {
		return text
	}
	return header + "\n\n" + text
}

// Chunk splits text into pieces of at most limit runes.
// Конкатенация частей всегда даёт исходный текст.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := min(start+limit, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Messages splits text into outgoing messages for a channel with the given
// limit. Text is chunked on its own, so a text of L runes always yields
// ceil(L/limit) text chunks. The header is attached to the first chunk when
// both fit into one message, otherwise it is sent as a separate first message.
func Messages(header, text string, limit int) []string {
	chunks := Chunk(text, limit)
	if header == "" {
		return chunks
	}
	first := WithHeader(header, chunks[0])
	if limit <= 0 || utf8.RuneCountInString(first) <= limit {
		chunks[0] = first
		return chunks
	}
	return append([]string{header}, chunks...)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
