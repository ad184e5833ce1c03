package slack

import (
	"strings"
	"unicode/utf8"
)

// MaxPreviewChars bounds how much raw log text goes into a preview block.
// Slack rejects messages past roughly 3000 characters per text object.
const MaxPreviewChars = 2800

// TruncationSuffix marks messages that were cut to fit Slack limits.
const TruncationSuffix = "\n... (truncated)"

// TextObject is a Slack composition text object.
type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// RichTextElement is a node inside a rich_text block. Leaf nodes carry Text,
// container nodes carry Elements.
type RichTextElement struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Elements []RichTextElement `json:"elements,omitempty"`
	Border   *int              `json:"border,omitempty"`
}

// Block is a Slack layout block. Only the fields used by the bot's message
// shapes are modeled.
type Block struct {
	Type     string            `json:"type"`
	Text     *TextObject       `json:"text,omitempty"`
	BlockID  string            `json:"block_id,omitempty"`
	Elements []RichTextElement `json:"elements,omitempty"`
}

// MessageBlocks builds the bot's two-block message shape: a markdown header
// section followed by the content either as markdown or as preformatted
// rich text.
func MessageBlocks(markdownHeader, content string, useMarkdown bool) []Block {
	header := Block{
		Type: "section",
		Text: &TextObject{Type: "mrkdwn", Text: markdownHeader},
	}

	if useMarkdown {
		return []Block{header, {
			Type: "section",
			Text: &TextObject{Type: "mrkdwn", Text: strings.TrimSpace(content)},
		}}
	}

	border := 0
	return []Block{header, {
		Type:    "rich_text",
		BlockID: "error_logs_block",
		Elements: []RichTextElement{{
			Type: "rich_text_preformatted",
			Elements: []RichTextElement{
				{Type: "text", Text: strings.TrimSpace(content)},
			},
			Border: &border,
		}},
	}}
}

// Truncate cuts text to at most max characters, appending a marker when
// anything was dropped.
func Truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max - len(TruncationSuffix)
	if cut < 0 {
		cut = 0
	}
	// Never split a multi-byte rune at the cut point; Slack rejects
	// invalid UTF-8.
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return strings.TrimRight(text[:cut], " \n\t") + TruncationSuffix
}
