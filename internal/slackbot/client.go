package slackbot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// Client posts messages as the bot user.
type Client struct {
	api        *slack.Client
	httpClient *http.Client
}

// NewClient builds a client for the Slack Web API. apiURL overrides the API base,
// e.g. for a local mock; leave it empty for slack.com.
func NewClient(botToken, apiURL string) *Client {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	opts := []slack.Option{slack.OptionHTTPClient(httpClient)}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(apiURL, "/")+"/"))
	}
	return &Client{
		api:        slack.New(botToken, opts...),
		httpClient: httpClient,
	}
}

// PostText sends plain text to a channel or user ID.
func (c *Client) PostText(ctx context.Context, channel, text string) error {
	if _, _, err := c.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

// PostBlocks sends a Block Kit message; text is the notification fallback.
func (c *Client) PostBlocks(ctx context.Context, channel, text string, blocks []slack.Block) error {
	_, _, err := c.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("post blocks: %w", err)
	}
	return nil
}

// RespondInteraction replaces the message an interaction came from.
func (c *Client) RespondInteraction(ctx context.Context, responseURL string, blocks []slack.Block) error {
	msg := &slack.WebhookMessage{
		ReplaceOriginal: true,
		Blocks:          &slack.Blocks{BlockSet: blocks},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, responseURL, c.httpClient, msg); err != nil {
		return fmt.Errorf("respond to interaction: %w", err)
	}
	return nil
}

// Ping checks the token against auth.test.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	return nil
}
