// Package slack implements the notify.Notifier for Slack using the Web API.
package slack

import (
	"context"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/zulandar/signalbox/internal/notify"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration between retries.
	baseBackoff = 2 * time.Second
)

// client abstracts the Slack API methods we use, enabling test mocks.
type client interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts classification events to a Slack channel.
type Notifier struct {
	client  client
	channel string
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	Token   string
	Channel string
	// For testing: inject a mock client instead of the real API.
	Client client
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("slack: token is required")
	}

	n := &Notifier{client: opts.Client, channel: opts.Channel}
	if n.client == nil {
		n.client = slackapi.New(opts.Token)
	}
	return n, nil
}

// Send implements notify.Notifier. Events become Slack attachments with
// a severity-colored sidebar.
func (n *Notifier) Send(ctx context.Context, evt notify.Event) error {
	attachment := slackapi.Attachment{
		Title: evt.Title,
		Text:  evt.Body,
		Color: notify.SeverityColor(evt.Severity),
	}
	for _, f := range evt.Fields {
		attachment.Fields = append(attachment.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}

	err := n.retryOnRateLimit(ctx, func() error {
		_, _, postErr := n.client.PostMessageContext(ctx, n.channel,
			slackapi.MsgOptionAttachments(attachment))
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Platform implements notify.Notifier.
func (n *Notifier) Platform() string { return "slack" }

// Close implements notify.Notifier. The Web API client is stateless.
func (n *Notifier) Close() error { return nil }

// retryOnRateLimit calls fn and retries with exponential backoff on
// Slack rate limit errors. It respects context cancellation.
func (n *Notifier) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		rateErr, ok := err.(*slackapi.RateLimitedError)
		if !ok {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := rateErr.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * baseBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
