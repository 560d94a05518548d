// Package bot reacts to chat events: greetings, language selection, the
// owner's settings panel and translation of plain text.
package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/deeplbot/deeplbot/internal/admin"
	"github.com/deeplbot/deeplbot/internal/bus"
	"github.com/deeplbot/deeplbot/internal/events"
	"github.com/deeplbot/deeplbot/internal/profile"
	"github.com/deeplbot/deeplbot/internal/routing"
	"github.com/deeplbot/deeplbot/internal/settings"
	"github.com/deeplbot/deeplbot/internal/translator"
)

// Reply texts.
const (
	Placeholder      = "📝"
	DebugGlyph       = "🛠 "
	greetNew         = "Nice to meet you, %s. "
	greetBack        = "Welcome back, %s. "
	usage            = "Just send me a message and I'll translate it into English. You can change the translation /language at any time."
	languagePrompt   = "I'm translating into <b>%s</b>, but I also know other languages"
	languageChosen   = "Now I'll be translating into <b>%s</b>"
	answerLanguage   = "Good choice 👌"
	answerSettings   = "Settings saved 👌"
	answerClose      = "Cleaning up ✨"
	adminGreeting    = "Welcome back, Commander"
	engineDownNotice = "⚠️ The translation engine is unavailable right now, please try again later."
	failedNotice     = "⚠️ Translation failed, please try again."
)

// Sender performs outbound operations synchronously and returns the
// affected message id.
type Sender interface {
	Send(ctx context.Context, msg *bus.OutboundMessage) (int64, error)
}

// Translator runs one translation.
type Translator interface {
	Translate(ctx context.Context, id int64, text string) (translator.Result, error)
}

// Deps wires a Handler.
type Deps struct {
	Bus        *bus.MessageBus
	Sender     Sender
	Channel    string
	Store      profile.Store
	Lifecycle  *profile.Lifecycle
	Settings   *settings.Cache
	Policy     *routing.Policy
	Panel      *admin.Panel
	Translator Translator
	Events     events.Publisher
}

// Handler consumes inbound events and answers them.
type Handler struct {
	Deps
	wg sync.WaitGroup
}

// New returns a Handler. A nil Events publisher drops events.
func New(d Deps) *Handler {
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	return &Handler{Deps: d}
}

// Run handles inbound events, each on its own goroutine, until ctx is done.
// It waits for in-flight events before returning.
func (h *Handler) Run(ctx context.Context) error {
	for {
		msg, err := h.Bus.ConsumeInbound(ctx)
		if err != nil {
			h.wg.Wait()
			return nil
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.Handle(ctx, msg)
		}()
	}
}

// Handle processes one inbound event.
func (h *Handler) Handle(ctx context.Context, msg *bus.InboundMessage) {
	id := identity(msg)
	var err error
	switch msg.Kind {
	case bus.KindCallback:
		err = h.onCallback(ctx, id, msg)
	case bus.KindAdmin:
		if !h.gate(ctx, msg, h.Policy.DecideAdmin(id)) {
			return
		}
		err = h.onAdmin(ctx, msg)
	default:
		if !h.gate(ctx, msg, h.Policy.Decide(id)) {
			return
		}
		switch msg.Kind {
		case bus.KindStart:
			err = h.onStart(ctx, id, msg)
		case bus.KindLanguage:
			err = h.onLanguage(ctx, id, msg)
		default:
			err = h.onText(ctx, id, msg)
		}
	}
	if err != nil {
		slog.Error("Handling event failed", "kind", msg.Kind, "identity", id, "trace", msg.TraceID, "error", err)
	}
}

// gate mirrors the message when required and reports whether to process it.
func (h *Handler) gate(ctx context.Context, msg *bus.InboundMessage, d routing.Decision) bool {
	if d.Mirror {
		h.forward(ctx, msg, msg.MessageID)
	}
	if !d.Process {
		slog.Debug("Message dropped by routing", "identity", identity(msg), "kind", msg.Kind)
	}
	return d.Process
}

func (h *Handler) onStart(ctx context.Context, id int64, msg *bus.InboundMessage) error {
	created, err := h.Lifecycle.Ensure(ctx, id)
	if err != nil {
		return err
	}
	var b strings.Builder
	name := html.EscapeString(msg.SenderName)
	if created {
		b.WriteString(h.debug(id, "New user, profile was created\n"))
		fmt.Fprintf(&b, greetNew, name)
	} else {
		b.WriteString(h.debug(id, fmt.Sprintf("User profile exists <b>%d</b>\n", id)))
		fmt.Fprintf(&b, greetBack, name)
	}
	b.WriteString(usage)
	_, err = h.send(ctx, &bus.OutboundMessage{
		Action:    bus.ActionSend,
		ChatID:    msg.ChatID,
		Content:   b.String(),
		ParseMode: bus.ParseModeHTML,
	})
	return err
}

func (h *Handler) onLanguage(ctx context.Context, id int64, msg *bus.InboundMessage) error {
	if _, err := h.Lifecycle.CheckVersion(ctx, id); err != nil {
		return err
	}
	lang := h.Lifecycle.Language(ctx, id)
	_, err := h.send(ctx, &bus.OutboundMessage{
		Action:    bus.ActionSend,
		ChatID:    msg.ChatID,
		Content:   fmt.Sprintf(languagePrompt, profile.LanguageName(lang)),
		ParseMode: bus.ParseModeHTML,
		Keyboard:  LanguageKeyboard(),
	})
	return err
}

func (h *Handler) onAdmin(ctx context.Context, msg *bus.InboundMessage) error {
	_, err := h.send(ctx, &bus.OutboundMessage{
		Action:   bus.ActionSend,
		ChatID:   msg.ChatID,
		Content:  adminGreeting,
		Keyboard: h.Panel.Render(),
	})
	return err
}

func (h *Handler) onCallback(ctx context.Context, id int64, msg *bus.InboundMessage) error {
	data := msg.Content
	switch {
	case data == admin.CloseData:
		h.answer(ctx, msg, answerClose)
		_, err := h.send(ctx, &bus.OutboundMessage{Action: bus.ActionDelete, ChatID: msg.ChatID, MessageID: msg.MessageID})
		return err
	case profile.IsLanguage(data):
		return h.onLanguageChosen(ctx, id, msg)
	case h.Panel.Owns(data):
		if !h.Policy.IsOwner(id) {
			h.answer(ctx, msg, "")
			slog.Warn("Settings callback from non-owner ignored", "identity", id, "data", data)
			return nil
		}
		act, err := h.Panel.Handle(ctx, data)
		if err != nil {
			return err
		}
		slog.Info("Setting toggled", "flag", act.Flag, "enabled", act.Enabled)
		h.answer(ctx, msg, answerSettings)
		_, err = h.send(ctx, &bus.OutboundMessage{
			Action:    bus.ActionEditMarkup,
			ChatID:    msg.ChatID,
			MessageID: msg.MessageID,
			Keyboard:  act.Keyboard,
		})
		return err
	}
	h.answer(ctx, msg, "")
	return fmt.Errorf("callback %q: %w", data, admin.ErrUnknownControl)
}

func (h *Handler) onLanguageChosen(ctx context.Context, id int64, msg *bus.InboundMessage) error {
	if _, err := h.Lifecycle.CheckVersion(ctx, id); err != nil {
		return err
	}
	lang := msg.Content
	if err := h.Store.Set(ctx, id, profile.SectionMain, profile.KeyLang, lang); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(h.debug(id, fmt.Sprintf("uid = %d", id)))
	b.WriteString(h.debug(id, fmt.Sprintf("msg_id = %d", msg.MessageID)))
	b.WriteString(h.debug(id, "btn = "+lang+"\n"))
	fmt.Fprintf(&b, languageChosen, profile.LanguageName(lang))

	h.answer(ctx, msg, answerLanguage)
	_, err := h.send(ctx, &bus.OutboundMessage{
		Action:    bus.ActionEdit,
		ChatID:    msg.ChatID,
		MessageID: msg.MessageID,
		Content:   b.String(),
		ParseMode: bus.ParseModeHTML,
	})
	return err
}

func (h *Handler) onText(ctx context.Context, id int64, msg *bus.InboundMessage) error {
	if _, err := h.Lifecycle.CheckVersion(ctx, id); err != nil {
		return err
	}
	placeholder, err := h.send(ctx, &bus.OutboundMessage{Action: bus.ActionSend, ChatID: msg.ChatID, Content: Placeholder})
	if err != nil {
		return err
	}

	res, err := h.Translator.Translate(ctx, id, msg.Content)
	if err != nil {
		notice := failedNotice
		if translator.IsUnavailable(err) {
			notice = engineDownNotice
		}
		if _, eerr := h.send(ctx, &bus.OutboundMessage{
			Action: bus.ActionEdit, ChatID: msg.ChatID, MessageID: placeholder, Content: notice,
		}); eerr != nil {
			slog.Warn("Replacing placeholder failed", "identity", id, "error", eerr)
		}
		return err
	}

	if res.Text == "" {
		if _, err := h.send(ctx, &bus.OutboundMessage{Action: bus.ActionDelete, ChatID: msg.ChatID, MessageID: placeholder}); err != nil {
			slog.Warn("Removing placeholder failed", "identity", id, "error", err)
		}
	} else {
		reply := h.debug(id, "Translation took "+FormatElapsed(res.Elapsed)+"\n") + res.Text
		if _, err := h.send(ctx, &bus.OutboundMessage{
			Action: bus.ActionEdit, ChatID: msg.ChatID, MessageID: placeholder, Content: reply,
		}); err != nil {
			return err
		}
		if h.Settings.IsEnabled(settings.Forward) && !h.Policy.IsOwner(id) {
			h.forward(ctx, msg, placeholder)
		}
	}

	if _, err := h.Store.IncrStat(ctx, id, profile.KeyTotal); err != nil {
		slog.Warn("Updating translation count failed", "identity", id, "error", err)
	}
	ev := events.NewTranslationEvent(id, res.Language, len([]rune(res.Text)), res.Text == "", res.Elapsed)
	if err := h.Events.Publish(ctx, ev); err != nil {
		slog.Warn("Publishing translation event failed", "identity", id, "error", err)
	}
	return nil
}

// debug returns a debug line for privileged users while debug is on.
func (h *Handler) debug(id int64, line string) string {
	if !h.Settings.IsEnabled(settings.Debug) || !h.Policy.Privileged(id) {
		return ""
	}
	return DebugGlyph + line + "\n"
}

func (h *Handler) send(ctx context.Context, msg *bus.OutboundMessage) (int64, error) {
	msg.Channel = h.Channel
	return h.Sender.Send(ctx, msg)
}

// forward copies messageID from msg's chat to the owner without waiting for
// the platform.
func (h *Handler) forward(ctx context.Context, msg *bus.InboundMessage, messageID int64) {
	h.queue(ctx, &bus.OutboundMessage{
		Action:     bus.ActionForward,
		ChatID:     h.Policy.Owner(),
		FromChatID: msg.ChatID,
		MessageID:  messageID,
		TraceID:    msg.TraceID,
	})
}

// answer acknowledges a callback without waiting for the platform.
func (h *Handler) answer(ctx context.Context, msg *bus.InboundMessage, text string) {
	h.queue(ctx, &bus.OutboundMessage{
		Action:     bus.ActionAnswer,
		CallbackID: msg.CallbackID,
		Content:    text,
		TraceID:    msg.TraceID,
	})
}

func (h *Handler) queue(ctx context.Context, msg *bus.OutboundMessage) {
	msg.Channel = h.Channel
	if err := h.Bus.PublishOutbound(ctx, msg); err != nil {
		slog.Warn("Outbound dropped", "action", msg.Action, "chat", msg.ChatID, "trace", msg.TraceID, "error", err)
	}
}

// LanguageKeyboard lists every language, then the close button.
func LanguageKeyboard() bus.Keyboard {
	codes := profile.Languages()
	buttons := make([]bus.Button, 0, len(codes)+1)
	for _, code := range codes {
		buttons = append(buttons, bus.Button{Text: profile.LanguageName(code), Data: code})
	}
	buttons = append(buttons, bus.Button{Text: admin.CloseLabel, Data: admin.CloseData})
	return bus.BuildKeyboard(buttons, admin.RowWidth)
}

// FormatElapsed renders a duration as "1.23 sec" below a minute, MM:SS below
// an hour and H:MM:SS above.
func FormatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.2f sec", d.Seconds())
	}
	total := int64(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func identity(msg *bus.InboundMessage) int64 {
	if msg.SenderID != 0 {
		return msg.SenderID
	}
	return msg.ChatID
}
