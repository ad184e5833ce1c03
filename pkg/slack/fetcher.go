package slack

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/redhat-performance/BugZooka/pkg/logx"
)

// DefaultPollInterval is how often the channel is checked for new messages.
const DefaultPollInterval = 10 * time.Minute

var (
	jobURLPattern  = regexp.MustCompile(`(https://[^\s|]+)`)
	jobNamePattern = regexp.MustCompile(`Job\s+\*?(.+?)\*?\s+ended`)
)

// ExtractJobDetails pulls the job URL and name out of a CI notification
// message ("Job *name* ended with failure ... <url>").
func ExtractJobDetails(text string) (jobURL, jobName string, ok bool) {
	urlMatch := jobURLPattern.FindString(text)
	nameMatch := jobNamePattern.FindStringSubmatch(text)
	if urlMatch == "" || nameMatch == nil {
		return "", "", false
	}
	return urlMatch, nameMatch[1], true
}

// CursorStore persists the last processed message timestamp per channel so
// restarts do not reprocess old failures.
type CursorStore interface {
	LastSeen(ctx context.Context, channel string) (string, error)
	SetLastSeen(ctx context.Context, channel, ts string) error
}

// ProcessFunc handles one new channel message.
type ProcessFunc func(ctx context.Context, msg Message) error

// Fetcher polls a channel and hands unprocessed failure messages to the
// pipeline. Messages the bot already replied to in-thread are skipped.
type Fetcher struct {
	client       *Client
	channelID    string
	botUserID    string
	pollInterval time.Duration
	cursor       CursorStore
	process      ProcessFunc
	logger       *logx.Logger

	lastSeen string
}

// NewFetcher creates a fetcher. botUserID identifies this bot's replies in
// threads. cursor may be nil, in which case the position is kept in memory
// only.
func NewFetcher(client *Client, channelID, botUserID string, pollInterval time.Duration, cursor CursorStore, process ProcessFunc) *Fetcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Fetcher{
		client:       client,
		channelID:    channelID,
		botUserID:    botUserID,
		pollInterval: pollInterval,
		cursor:       cursor,
		process:      process,
		logger:       logx.NewLogger("fetcher"),
	}
}

// Run polls until the context is canceled. The first fetch happens
// immediately.
func (f *Fetcher) Run(ctx context.Context) error {
	if f.cursor != nil {
		ts, err := f.cursor.LastSeen(ctx, f.channelID)
		if err != nil {
			f.logger.Warn("loading cursor for channel %s: %v", f.channelID, err)
		} else {
			f.lastSeen = ts
		}
	}

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	f.FetchOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("fetcher for channel %s stopping", f.channelID)
			return ctx.Err()
		case <-ticker.C:
			f.FetchOnce(ctx)
		}
	}
}

// FetchOnce checks the channel once and processes anything new. Errors are
// logged, not returned; the poll loop must survive transient API failures.
func (f *Fetcher) FetchOnce(ctx context.Context) {
	params := HistoryParams{Channel: f.channelID, Limit: 1}
	if f.lastSeen != "" {
		params.Oldest = f.lastSeen
	}

	page, err := f.client.ConversationsHistory(ctx, params)
	if err != nil {
		f.logger.Error("fetching channel history: %v", err)
		return
	}
	newMessages := f.filterNew(ctx, page.Messages)
	if len(newMessages) == 0 {
		f.logger.Info("no new messages in channel %s", f.channelID)
		return
	}

	maxTS := f.lastSeen
	for _, msg := range newMessages {
		if tsAfter(msg.TS, maxTS) {
			maxTS = msg.TS
		}
		if err := f.process(ctx, msg); err != nil {
			// Advance past the failing message anyway so one bad log
			// cannot wedge the loop.
			f.logger.Error("processing message %s: %v", msg.TS, err)
			f.advanceTo(ctx, maxTS)
			return
		}
		f.advanceTo(ctx, msg.TS)
	}
}

// filterNew keeps messages newer than the cursor that the bot has not
// already answered, oldest first.
func (f *Fetcher) filterNew(ctx context.Context, messages []Message) []Message {
	var fresh []Message
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if f.lastSeen != "" && !tsAfter(msg.TS, f.lastSeen) {
			f.logger.Debug("skipping message %s: not newer than cursor", msg.TS)
			continue
		}
		if f.botReplied(ctx, msg.TS) {
			f.logger.Debug("skipping message %s: already answered", msg.TS)
			continue
		}
		fresh = append(fresh, msg)
	}
	return fresh
}

func (f *Fetcher) botReplied(ctx context.Context, ts string) bool {
	replies, err := f.client.ConversationsReplies(ctx, f.channelID, ts)
	if err != nil {
		f.logger.Warn("fetching replies for %s: %v", ts, err)
		return false
	}
	if len(replies) < 2 {
		return false
	}
	for _, reply := range replies[1:] { // index 0 is the parent
		if reply.User == f.botUserID {
			return true
		}
	}
	return false
}

func (f *Fetcher) advanceTo(ctx context.Context, ts string) {
	if ts == "" || !tsAfter(ts, f.lastSeen) {
		return
	}
	f.logger.Debug("advancing cursor from %q to %q", f.lastSeen, ts)
	f.lastSeen = ts
	if f.cursor != nil {
		if err := f.cursor.SetLastSeen(ctx, f.channelID, ts); err != nil {
			f.logger.Warn("persisting cursor: %v", err)
		}
	}
}

// tsAfter compares Slack timestamps ("1727712345.000100") numerically.
func tsAfter(a, b string) bool {
	if b == "" {
		return a != ""
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil {
		return a > b
	}
	return fa > fb
}
