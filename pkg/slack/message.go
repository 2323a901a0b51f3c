package slack

import (
	"fmt"
	"strings"
)

// Response types understood by Slack for slash-command replies.
const (
	ResponseEphemeral = "ephemeral"
	ResponseInChannel = "in_channel"
)

// Message is a Slack message payload, either inline (synchronous ack) or
// posted to a response_url.
type Message struct {
	ResponseType string  `json:"response_type"`
	Text         string  `json:"text,omitempty"`
	Blocks       []Block `json:"blocks,omitempty"`
}

// Block is a Slack Block Kit section.
type Block struct {
	Type string      `json:"type"`
	Text *TextObject `json:"text,omitempty"`
}

// TextObject is the text payload of a block.
type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func section(markdown string) Block {
	return Block{Type: "section", Text: &TextObject{Type: "mrkdwn", Text: markdown}}
}

// AckMessage is the immediate synchronous reply to a valid slash command.
func AckMessage() Message {
	return Message{
		ResponseType: ResponseEphemeral,
		Text:         "Generating CGO proposal... I'll post the quote link here when it's ready (usually 30-90 seconds).",
	}
}

// UsageMessage is the inline reply for a command without a deal reference.
func UsageMessage() Message {
	return Message{
		ResponseType: ResponseEphemeral,
		Text: "Usage: /cgo-proposal <HubSpot deal URL>\n" +
			"Example: /cgo-proposal https://app.hubspot.com/contacts/21656838/record/0-3/12345",
	}
}

// ErrorMessage is an inline ephemeral error reply on the synchronous path.
func ErrorMessage(text string) Message {
	return Message{ResponseType: ResponseEphemeral, Text: text}
}

// SuccessMessage is the delayed in-channel result carrying the quote URL.
func SuccessMessage(companyName string, totalMonthly int, services []string, quoteURL string) Message {
	lines := make([]string, 0, len(services))
	for _, s := range services {
		lines = append(lines, fmt.Sprintf("• %s", s))
	}
	return Message{
		ResponseType: ResponseInChannel,
		Blocks: []Block{
			section(fmt.Sprintf("*CGO Proposal created for %s*", companyName)),
			section(fmt.Sprintf("*Monthly investment:* $%s\n*Services:*\n%s",
				formatThousands(totalMonthly), strings.Join(lines, "\n"))),
			section(fmt.Sprintf("<%s|View quote in HubSpot>", quoteURL)),
		},
	}
}

// FailureMessage is the delayed ephemeral result identifying the failing stage.
func FailureMessage(stage, reason string) Message {
	return Message{
		ResponseType: ResponseEphemeral,
		Text:         fmt.Sprintf("Failed at %s: %s", stage, reason),
	}
}

// formatThousands renders 12000 as "12,000".
func formatThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + formatThousands(-n)
	}
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
