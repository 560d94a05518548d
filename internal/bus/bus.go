// Package bus provides the async message bus between the chat channel and the bot.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind classifies an inbound chat event.
type EventKind string

const (
	KindStart    EventKind = "start"
	KindLanguage EventKind = "language"
	KindAdmin    EventKind = "admin"
	KindText     EventKind = "text"
	KindCallback EventKind = "callback"
)

// InboundMessage represents an event from a channel to the bot.
type InboundMessage struct {
	Channel    string         `json:"channel"`
	Kind       EventKind      `json:"kind"`
	ChatID     int64          `json:"chat_id"`
	MessageID  int64          `json:"message_id"`
	SenderID   int64          `json:"sender_id"`
	SenderName string         `json:"sender_name,omitempty"`
	Content    string         `json:"content"`
	CallbackID string         `json:"callback_id,omitempty"`
	TraceID    string         `json:"trace_id"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Action is the outbound operation a channel performs.
type Action string

const (
	ActionSend       Action = "send"
	ActionEdit       Action = "edit"
	ActionEditMarkup Action = "edit_markup"
	ActionDelete     Action = "delete"
	ActionForward    Action = "forward"
	ActionAnswer     Action = "answer"
)

// Parse modes understood by channels.
const (
	ParseModeNone = ""
	ParseModeHTML = "HTML"
)

// OutboundMessage represents an operation from the bot to a channel.
type OutboundMessage struct {
	Channel    string   `json:"channel"`
	Action     Action   `json:"action"`
	ChatID     int64    `json:"chat_id"`
	MessageID  int64    `json:"message_id,omitempty"`
	FromChatID int64    `json:"from_chat_id,omitempty"`
	CallbackID string   `json:"callback_id,omitempty"`
	Content    string   `json:"content,omitempty"`
	ParseMode  string   `json:"parse_mode,omitempty"`
	Keyboard   Keyboard `json:"keyboard,omitempty"`
	TraceID    string   `json:"trace_id,omitempty"`
}

// MessageBus decouples channels from the bot core.
type MessageBus struct {
	inbound  chan *InboundMessage
	outbound chan *OutboundMessage
	subs     map[string][]func(*OutboundMessage)
	mu       sync.RWMutex
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan *InboundMessage, 100),
		outbound: make(chan *OutboundMessage, 100),
		subs:     make(map[string][]func(*OutboundMessage)),
	}
}

// PublishInbound sends an event from a channel to the bot. It gives up when
// ctx is done before the queue has room.
func (b *MessageBus) PublishInbound(ctx context.Context, msg *InboundMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.TraceID == "" {
		msg.TraceID = uuid.NewString()
	}
	select {
	case b.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumeInbound blocks until a message is available or context is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishOutbound queues a fire-and-forget operation for a channel. It gives
// up when ctx is done before the queue has room.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg *OutboundMessage) error {
	select {
	case b.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a callback for outbound messages to a specific channel.
func (b *MessageBus) Subscribe(channel string, callback func(*OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[channel] = append(b.subs[channel], callback)
}

// DispatchOutbound delivers queued outbound messages to subscribers until
// ctx is done. Run it on its own goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.outbound:
			b.mu.RLock()
			callbacks := b.subs[msg.Channel]
			b.mu.RUnlock()

			for _, cb := range callbacks {
				cb(msg)
			}
		}
	}
}

// Pending returns the number of queued inbound and outbound messages.
func (b *MessageBus) Pending() (inbound, outbound int) {
	return len(b.inbound), len(b.outbound)
}
