// Package webhook receives LINE webhook deliveries, verifies them, and drives
// the subscription flow for each text message event.
package webhook

import "encoding/json"

// Event and message type values this service acts on.
const (
	EventTypeMessage  = "message"
	EventTypeUnfollow = "unfollow"

	MessageTypeText = "text"

	SourceTypeUser = "user"
)

// Envelope is the body of a webhook delivery. Events are decoded one at a
// time by the handler.
type Envelope struct {
	Destination string            `json:"destination"`
	Events      []json.RawMessage `json:"events"`
}

// Event is a single webhook event. Only the fields the bot reads are decoded.
type Event struct {
	Type           string   `json:"type"`
	Mode           string   `json:"mode,omitempty"`
	Timestamp      int64    `json:"timestamp"`
	ReplyToken     string   `json:"replyToken,omitempty"`
	WebhookEventID string   `json:"webhookEventId,omitempty"`
	Source         Source   `json:"source"`
	Message        *Message `json:"message,omitempty"`
}

// Source identifies who triggered the event.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Message is the message payload of a message event.
type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// IsText reports whether the event carries a text message.
func (e Event) IsText() bool {
	return e.Type == EventTypeMessage && e.Message != nil && e.Message.Type == MessageTypeText
}
