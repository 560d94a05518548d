// Package channels connects chat platforms to the message bus.
package channels

import (
	"context"
	"errors"

	"github.com/deeplbot/deeplbot/internal/bus"
)

// ErrUnsupportedAction is returned for outbound actions a channel cannot perform.
var ErrUnsupportedAction = errors.New("channels: unsupported action")

// Channel defines the interface for chat platforms.
type Channel interface {
	// Name returns the channel name (e.g. "telegram").
	Name() string
	// Start starts the channel listener.
	Start(ctx context.Context) error
	// Stop stops the channel listener.
	Stop() error
	// Send performs one outbound operation and returns the id of the
	// message it created or touched.
	Send(ctx context.Context, msg *bus.OutboundMessage) (int64, error)
}

// BaseChannel provides common functionality for channels.
type BaseChannel struct {
	Bus *bus.MessageBus
}
