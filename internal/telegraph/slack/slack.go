// Package slack posts controller alerts to a Slack channel through the Web
// API. A batch of alerts becomes one message: a headline for the
// notification and one colored attachment per alert, most urgent first.
package slack

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/ctc/internal/telegraph"
)

// maxAttempts bounds posts of one batch while Slack is rate limiting.
const maxAttempts = 4

var severityIcon = map[string]string{
	"error":   ":rotating_light:",
	"warning": ":warning:",
	"info":    ":information_source:",
	"success": ":white_check_mark:",
}

// poster is the slice of the Slack client the adapter needs.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter posts alerts to a Slack channel.
type Adapter struct {
	client    poster
	channelID string

	mu     sync.Mutex
	closed bool
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	BotToken  string // xoxb-... bot token
	ChannelID string // channel used when a message names none
	Client    poster // overrides the Web API client
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	client := opts.Client
	if client == nil {
		if opts.BotToken == "" {
			return nil, fmt.Errorf("slack: bot token is required")
		}
		client = slackapi.New(opts.BotToken)
	}
	return &Adapter{client: client, channelID: opts.ChannelID}, nil
}

// Send posts one batch of alerts. Rate-limited posts are retried after the
// delay Slack asks for.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return fmt.Errorf("slack: adapter closed")
	}

	channel := cmp.Or(msg.ChannelID, a.channelID)
	if channel == "" {
		return fmt.Errorf("slack: no channel specified")
	}

	options := alertOptions(msg)
	for attempt := 1; ; attempt++ {
		_, _, err := a.client.PostMessageContext(ctx, channel, options...)
		if err == nil {
			return nil
		}
		wait, limited := backoff(err, attempt)
		if !limited || attempt == maxAttempts {
			return fmt.Errorf("slack: post to %s: %w", channel, err)
		}
		log.Printf("slack: rate limited posting to %s, retrying in %v", channel, wait)
		select {
		case <-ctx.Done():
			return fmt.Errorf("slack: post to %s: %w", channel, ctx.Err())
		case <-time.After(wait):
		}
	}
}

// Close marks the adapter closed. The Web API client holds no connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// backoff reports whether err is a rate limit and how long to wait before
// the next attempt.
func backoff(err error, attempt int) (time.Duration, bool) {
	var rle *slackapi.RateLimitedError
	if !errors.As(err, &rle) {
		return 0, false
	}
	if rle.RetryAfter > 0 {
		return rle.RetryAfter, true
	}
	return time.Duration(attempt) * time.Second, true
}

// alertOptions builds the message: the headline, marked with the worst
// severity's icon, as notification text, then the alerts sorted by severity.
// Alert text never unfurls links.
func alertOptions(msg telegraph.OutboundMessage) []slackapi.MsgOption {
	text := msg.Text
	if text == "" {
		text = telegraph.Headline(msg.Events)
		if icon, ok := severityIcon[telegraph.Worst(msg.Events)]; ok {
			text = icon + " " + text
		}
	}
	options := []slackapi.MsgOption{
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionDisableLinkUnfurl(),
	}
	if len(msg.Events) == 0 {
		return options
	}
	events := telegraph.BySeverity(msg.Events)
	attachments := make([]slackapi.Attachment, 0, len(events))
	for _, e := range events {
		attachments = append(attachments, alertAttachment(e))
	}
	return append(options, slackapi.MsgOptionAttachments(attachments...))
}

// alertAttachment renders one alert. Summaries put their figures on a single
// code line; fault alerts keep a two-column field grid.
func alertAttachment(e telegraph.FormattedEvent) slackapi.Attachment {
	att := slackapi.Attachment{
		Color:      e.Color,
		Title:      e.Title,
		Fallback:   e.Title,
		Text:       e.Body,
		Footer:     "CTC",
		MarkdownIn: []string{"text"},
	}
	if icon, ok := severityIcon[e.Severity]; ok {
		att.Title = icon + " " + e.Title
	}
	if e.Tick > 0 {
		att.Footer = fmt.Sprintf("CTC tick %d", e.Tick)
	}
	if !e.Time.IsZero() {
		att.Ts = json.Number(strconv.FormatInt(e.Time.Unix(), 10))
	}

	if e.Compact {
		if line := telegraph.InlineFields(e.Fields); line != "" {
			if att.Text != "" {
				att.Text += "\n"
			}
			att.Text += "`" + line + "`"
		}
		return att
	}
	for _, f := range e.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: f.Name, Value: f.Value, Short: f.Short})
	}
	return att
}
