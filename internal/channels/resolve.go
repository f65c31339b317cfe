package channels

import (
	"strings"

	re2 "github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"
)

// How an inbound message found its agent.
const (
	ViaReply   = "reply"
	ViaPrefix  = "prefix"
	ViaChannel = "channel"
	ViaNone    = "none"
)

// Inbound is a chat message received by an adapter.
type Inbound struct {
	Channel   string // "telegram" | "discord"
	SenderID  string
	ChatID    string
	MessageID string
	ReplyToID string
	Text      string

	// ChannelAgent is the agent owning the Discord channel the message was posted in.
	ChannelAgent string
}

// Target is the resolved destination of an inbound message.
type Target struct {
	Agent string
	Text  string
	Via   string
}

// @agent text | /agent[@bot] text | agent: text
var prefixPattern = re2.MustCompile(`(?is)^\s*(?:@([\p{L}\p{N}_.-]+)|/([\p{L}\p{N}_.-]+)(?:@\w+)?|([\p{L}\p{N}_.-]+):)[\s:,]*(.*)$`)

// Normalize приводит текст сообщения к NFC и обрезает пробелы
func Normalize(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}

// ParsePrefix extracts an explicit agent address from text. The returned
// agent is the configured spelling; rest is text without the address.
func ParsePrefix(text string, agents []string) (agent, rest string, ok bool) {
	m := prefixPattern.FindStringSubmatch(text)
	if m == nil {
		return "", text, false
	}

	name := m[1] + m[2] + m[3]
	for _, a := range agents {
		if strings.EqualFold(a, name) {
			return a, strings.TrimSpace(m[4]), true
		}
	}
	return "", text, false
}

// ResolveTarget picks the agent for msg: a reply to a tracked message wins,
// then an explicit prefix, then the agent owning the channel.
func ResolveTarget(msg Inbound, routes *RoutingMap, agents []string) (Target, bool) {
	if msg.ReplyToID != "" && routes != nil {
		if agent, ok := routes.Lookup(msg.ReplyToID); ok {
			return Target{Agent: agent, Text: msg.Text, Via: ViaReply}, true
		}
	}

	if agent, rest, ok := ParsePrefix(msg.Text, agents); ok {
		return Target{Agent: agent, Text: rest, Via: ViaPrefix}, true
	}

	if msg.ChannelAgent != "" {
		for _, a := range agents {
			if a == msg.ChannelAgent {
				return Target{Agent: a, Text: msg.Text, Via: ViaChannel}, true
			}
		}
	}

	return Target{Text: msg.Text, Via: ViaNone}, false
}
