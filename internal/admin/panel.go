// Package admin renders and drives the owner's settings panel.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/deeplbot/deeplbot/internal/bus"
	"github.com/deeplbot/deeplbot/internal/settings"
)

// CloseData is the callback payload of the close button.
const CloseData = "close"

// CloseLabel is the close button text.
const CloseLabel = "❌ Close"

// RowWidth is the number of buttons per keyboard row.
const RowWidth = 2

// ErrUnknownControl is returned for callback payloads the panel does not own.
var ErrUnknownControl = errors.New("admin: unknown control")

// Toggles is the settings surface the panel drives.
type Toggles interface {
	Flags() []settings.Flag
	Label(f settings.Flag) string
	Toggle(ctx context.Context, f settings.Flag) (bool, error)
}

// ActionKind says what the caller should do with the panel message.
type ActionKind int

const (
	// Rerender replaces the panel's keyboard in place.
	Rerender ActionKind = iota
	// Close deletes the panel message.
	Close
)

// Action is the outcome of a panel callback.
type Action struct {
	Kind     ActionKind
	Flag     settings.Flag
	Enabled  bool
	Keyboard bus.Keyboard
}

// Panel builds the settings keyboard and applies its callbacks.
type Panel struct {
	toggles Toggles
}

// New returns a panel over toggles.
func New(toggles Toggles) *Panel {
	return &Panel{toggles: toggles}
}

// Render lays out one button per flag, then the close button.
func (p *Panel) Render() bus.Keyboard {
	flags := p.toggles.Flags()
	buttons := make([]bus.Button, 0, len(flags)+1)
	for _, f := range flags {
		buttons = append(buttons, bus.Button{Text: p.toggles.Label(f), Data: string(f)})
	}
	buttons = append(buttons, bus.Button{Text: CloseLabel, Data: CloseData})
	return bus.BuildKeyboard(buttons, RowWidth)
}

// Owns reports whether data is a panel callback payload.
func (p *Panel) Owns(data string) bool {
	if data == CloseData {
		return true
	}
	_, err := settings.ParseFlag(data)
	return err == nil
}

// Handle applies a callback payload.
func (p *Panel) Handle(ctx context.Context, data string) (Action, error) {
	if data == CloseData {
		return Action{Kind: Close}, nil
	}
	f, err := settings.ParseFlag(data)
	if err != nil {
		return Action{}, fmt.Errorf("%q: %w", data, ErrUnknownControl)
	}
	on, err := p.toggles.Toggle(ctx, f)
	if err != nil {
		return Action{}, err
	}
	return Action{Kind: Rerender, Flag: f, Enabled: on, Keyboard: p.Render()}, nil
}
