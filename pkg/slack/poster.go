package slack

import (
	"context"
	"strings"
)

// Poster posts the bot's threaded replies into a channel.
type Poster struct {
	client    *Client
	channelID string
}

// NewPoster creates a poster for one channel.
func NewPoster(client *Client, channelID string) *Poster {
	return &Poster{client: client, channelID: channelID}
}

// PostErrorPreview posts the extracted error lines as a preformatted block
// under the failure message. Long logs are truncated with a marker.
func (p *Poster) PostErrorPreview(ctx context.Context, threadTS, category string, errorLines []string) error {
	preview := Truncate(strings.Join(errorLines, "\n"), MaxPreviewChars)
	blocks := MessageBlocks(
		":checking: *Error Logs Preview ("+category+")*\n",
		preview,
		false,
	)
	return p.client.PostMessage(ctx, PostMessageParams{
		Channel:  p.channelID,
		Text:     "Error Logs Preview",
		Blocks:   blocks,
		ThreadTS: threadTS,
	})
}

// PostRetriggerSuggestion posts the maintenance-issue follow-up.
func (p *Poster) PostRetriggerSuggestion(ctx context.Context, threadTS string) error {
	blocks := MessageBlocks(
		":repeat: *Re-trigger Suggested*\n",
		"This appears to be an installation or maintenance issue. Please re-trigger the run.",
		false,
	)
	return p.client.PostMessage(ctx, PostMessageParams{
		Channel:  p.channelID,
		Text:     "Re-trigger Suggested",
		Blocks:   blocks,
		ThreadTS: threadTS,
	})
}

// PostAnalysis posts the model-generated analysis as markdown.
func (p *Poster) PostAnalysis(ctx context.Context, threadTS, analysis string) error {
	blocks := MessageBlocks(
		":fast_forward: *Implications to understand (AI generated)*\n",
		Truncate(analysis, MaxPreviewChars),
		true,
	)
	return p.client.PostMessage(ctx, PostMessageParams{
		Channel:  p.channelID,
		Text:     "Implications summary",
		Blocks:   blocks,
		ThreadTS: threadTS,
	})
}

// PostAnalysisUnavailable posts the fallback notice when inference is down.
func (p *Poster) PostAnalysisUnavailable(ctx context.Context, threadTS string) error {
	blocks := MessageBlocks(
		":warning: *Analysis Unavailable*\n",
		"The inference API is currently unavailable. Raw error logs have been provided above for manual review.",
		false,
	)
	return p.client.PostMessage(ctx, PostMessageParams{
		Channel:  p.channelID,
		Text:     "Analysis Unavailable",
		Blocks:   blocks,
		ThreadTS: threadTS,
	})
}

// PostSummary posts a periodic failure breakdown, threaded when threadTS is
// non-empty.
func (p *Poster) PostSummary(ctx context.Context, threadTS, summary string) error {
	blocks := MessageBlocks(
		":star: *Summary* :star:\n",
		Truncate(summary, MaxPreviewChars),
		true,
	)
	return p.client.PostMessage(ctx, PostMessageParams{
		Channel:  p.channelID,
		Text:     "Summary",
		Blocks:   blocks,
		ThreadTS: threadTS,
	})
}
