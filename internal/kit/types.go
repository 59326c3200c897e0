// Package kit holds the transport-neutral types shared between services and
// the chat adapter. Services depend on these, never on telebot directly.
package kit

import "context"

// ChatTarget addresses one chat (and optionally a topic thread inside it).
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// SendOptions tweaks outbound message rendering.
type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// MessageRef identifies a message that was sent.
type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

// Sender is the single outbound send primitive.
// Implementations must tolerate concurrent calls.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
