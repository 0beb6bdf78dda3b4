// Package discord posts controller alerts to a Discord channel over the REST
// API. Each alert is an embed colored by severity and stamped with the
// simulation time; batches larger than Discord's embed limit are split
// across messages.
package discord

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/ctc/internal/telegraph"
)

const (
	// embedsPerMessage is Discord's limit on embeds in one message.
	embedsPerMessage = 10

	maxAttempts = 4
	firstDelay  = 2 * time.Second
	maxDelay    = 30 * time.Second
)

// session is the slice of discordgo.Session the adapter needs.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// Adapter posts alerts to a Discord channel. It never opens the Gateway.
type Adapter struct {
	sess       session
	channelID  string
	firstDelay time.Duration
	maxDelay   time.Duration

	mu     sync.Mutex
	closed bool
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string  // Discord bot token
	ChannelID string  // channel used when a message names none
	Session   session // overrides the REST session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	a := &Adapter{
		sess:       opts.Session,
		channelID:  opts.ChannelID,
		firstDelay: firstDelay,
		maxDelay:   maxDelay,
	}
	if a.sess == nil {
		if opts.BotToken == "" {
			return nil, fmt.Errorf("discord: bot token is required")
		}
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		a.sess = dg
	}
	return a, nil
}

// Send posts a batch of alerts, most urgent first. A batch that needs more
// than one message stops at the first message that fails.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return fmt.Errorf("discord: adapter closed")
	}

	channel := cmp.Or(msg.ChannelID, a.channelID)
	if channel == "" {
		return fmt.Errorf("discord: no channel specified")
	}

	for i, data := range alertMessages(msg) {
		if err := a.post(ctx, channel, data); err != nil {
			return fmt.Errorf("discord: send part %d to %s: %w", i+1, channel, err)
		}
	}
	return nil
}

func (a *Adapter) post(ctx context.Context, channel string, data *discordgo.MessageSend) error {
	delay := a.firstDelay
	for attempt := 1; ; attempt++ {
		_, err := a.sess.ChannelMessageSendComplex(channel, data, discordgo.WithContext(ctx))
		if err == nil || !rateLimited(err) || attempt == maxAttempts {
			return err
		}
		log.Printf("discord: rate limited posting to %s, retrying in %v", channel, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(2*delay, a.maxDelay)
	}
}

// Close releases the session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.sess.Close()
}

func rateLimited(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusTooManyRequests
}

// alertMessages splits a batch into messages of at most embedsPerMessage
// embeds. Only the first carries the headline. Alerts never ping anyone.
func alertMessages(msg telegraph.OutboundMessage) []*discordgo.MessageSend {
	content := cmp.Or(msg.Text, telegraph.Headline(msg.Events))
	quiet := &discordgo.MessageAllowedMentions{}
	if len(msg.Events) == 0 {
		return []*discordgo.MessageSend{{Content: content, AllowedMentions: quiet}}
	}

	events := telegraph.BySeverity(msg.Events)
	var out []*discordgo.MessageSend
	for start := 0; start < len(events); start += embedsPerMessage {
		data := &discordgo.MessageSend{AllowedMentions: quiet}
		if start == 0 {
			data.Content = content
		}
		for _, e := range events[start:min(start+embedsPerMessage, len(events))] {
			data.Embeds = append(data.Embeds, alertEmbed(e))
		}
		out = append(out, data)
	}
	return out
}

// alertEmbed renders one alert. Summaries put their figures on one line of
// the description; fault alerts use inline fields.
func alertEmbed(e telegraph.FormattedEvent) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Body,
		Color:       embedColor(e.Color),
		Footer:      &discordgo.MessageEmbedFooter{Text: footer(e)},
	}
	if !e.Time.IsZero() {
		embed.Timestamp = e.Time.UTC().Format(time.RFC3339)
	}
	if e.Compact {
		if line := telegraph.InlineFields(e.Fields); line != "" {
			embed.Description = strings.TrimSpace(embed.Description + "\n" + line)
		}
		return embed
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Short})
	}
	return embed
}

func footer(e telegraph.FormattedEvent) string {
	parts := []string{"CTC"}
	if e.Severity != "" {
		parts = append(parts, e.Severity)
	}
	if e.Tick > 0 {
		parts = append(parts, "tick "+strconv.FormatUint(e.Tick, 10))
	}
	return strings.Join(parts, " | ")
}

// embedColor converts a "#rrggbb" hint to Discord's integer color. Anything
// else leaves the embed uncolored.
func embedColor(hex string) int {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 24)
	if err != nil {
		return 0
	}
	return int(v)
}
