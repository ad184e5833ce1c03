// Package slack is a minimal Slack Web API client plus the channel polling
// loop that feeds CI failure messages into the analysis pipeline.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redhat-performance/BugZooka/pkg/logx"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

// Message is a channel message as returned by conversations.history.
type Message struct {
	User     string `json:"user"`
	BotID    string `json:"bot_id,omitempty"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// HistoryParams selects a slice of channel history.
type HistoryParams struct {
	Channel string
	Oldest  string
	Latest  string
	Cursor  string
	Limit   int
}

// HistoryPage is one page of conversations.history results.
type HistoryPage struct {
	Messages   []Message
	HasMore    bool
	NextCursor string
}

// PostMessageParams describes an outgoing chat.postMessage call.
type PostMessageParams struct {
	Channel  string  `json:"channel"`
	Text     string  `json:"text"`
	Blocks   []Block `json:"blocks,omitempty"`
	ThreadTS string  `json:"thread_ts,omitempty"`
}

// apiEnvelope is the common part of every Web API response.
type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// APIError is a Slack ok:false response.
type APIError struct {
	Method string
	Reason string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s failed: %s", e.Method, e.Reason)
}

// Client talks to the Slack Web API with a bot token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *logx.Logger
}

// NewClient creates a Web API client using the given bot token.
func NewClient(token string) *Client {
	return NewClientWithBaseURL(token, DefaultBaseURL)
}

// NewClientWithBaseURL creates a client against a non-default API root.
func NewClientWithBaseURL(token, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
		logger:     logx.NewLogger("slack"),
	}
}

// ConversationsHistory fetches one page of channel history.
func (c *Client) ConversationsHistory(ctx context.Context, params HistoryParams) (*HistoryPage, error) {
	q := url.Values{}
	q.Set("channel", params.Channel)
	if params.Oldest != "" {
		q.Set("oldest", params.Oldest)
	}
	if params.Latest != "" {
		q.Set("latest", params.Latest)
	}
	if params.Cursor != "" {
		q.Set("cursor", params.Cursor)
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}

	var resp struct {
		apiEnvelope
		Messages         []Message `json:"messages"`
		HasMore          bool      `json:"has_more"`
		ResponseMetadata struct {
			NextCursor string `json:"next_cursor"`
		} `json:"response_metadata"`
	}
	if err := c.get(ctx, "conversations.history", q, &resp); err != nil {
		return nil, err
	}
	return &HistoryPage{
		Messages:   resp.Messages,
		HasMore:    resp.HasMore,
		NextCursor: resp.ResponseMetadata.NextCursor,
	}, nil
}

// ConversationsReplies fetches a message's thread. The parent message is
// the first entry.
func (c *Client) ConversationsReplies(ctx context.Context, channel, ts string) ([]Message, error) {
	q := url.Values{}
	q.Set("channel", channel)
	q.Set("ts", ts)

	var resp struct {
		apiEnvelope
		Messages []Message `json:"messages"`
	}
	if err := c.get(ctx, "conversations.replies", q, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// PostMessage posts a message, optionally threaded and with blocks.
func (c *Client) PostMessage(ctx context.Context, params PostMessageParams) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding chat.postMessage body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building chat.postMessage request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	var resp apiEnvelope
	if err := c.do(req, "chat.postMessage", &resp); err != nil {
		return err
	}
	return nil
}

func (c *Client) get(ctx context.Context, method string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+method+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.do(req, method, out)
}

// do executes the request and decodes the envelope, turning ok:false into
// an APIError.
func (c *Client) do(req *http.Request, method string, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading slack %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s returned status %d", method, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding slack %s response: %w", method, err)
	}

	// All decode targets embed the envelope; decode it separately to read it.
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err == nil && !env.OK {
		return &APIError{Method: method, Reason: env.Error}
	}
	return nil
}
