// Package telegraph posts controller alerts to chat platforms (Slack,
// Discord). It only sends; operators act through the HTTP API.
package telegraph

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific implementations must satisfy.
type Adapter interface {
	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close releases the platform connection.
	Close() error
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string           // target channel; empty uses the adapter default
	Text      string           // message text (platform-native formatting)
	Events    []FormattedEvent // structured event attachments
}

// FormattedEvent is a controller event formatted for display in chat.
type FormattedEvent struct {
	Title    string    // event headline (e.g. "Train 12 held")
	Body     string    // detail text
	Severity string    // "info", "warning", "error", "success"
	Color    string    // sidebar color hint (e.g. "#36a64f" for success)
	Fields   []Field   // key-value metadata pairs
	Tick     uint64    // controller tick the event was detected on
	Time     time.Time // simulation time of that tick
	Compact  bool      // render fields inline rather than as a grid
}

// Field is a key-value pair displayed in an event attachment.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}
