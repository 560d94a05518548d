package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/deeplbot/deeplbot/internal/bus"
	"github.com/deeplbot/deeplbot/internal/config"
	"github.com/go-resty/resty/v2"
)

// TelegramChannel talks to the Telegram Bot API with long polling.
type TelegramChannel struct {
	BaseChannel
	config config.TelegramConfig
	http   *resty.Client

	offset int64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTelegramChannel(cfg config.TelegramConfig, messageBus *bus.MessageBus) *TelegramChannel {
	base := strings.TrimRight(cfg.APIBase, "/") + "/bot" + cfg.Token
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.PollTimeout + 10*time.Second).
		SetHeader("Content-Type", "application/json")
	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
	}
	return &TelegramChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		http:        client,
	}
}

func (c *TelegramChannel) Name() string { return "telegram" }

// Start subscribes to outbound bus traffic and begins polling for updates.
func (c *TelegramChannel) Start(ctx context.Context) error {
	me, err := c.getMe(ctx)
	if err != nil {
		return err
	}
	slog.Info("Telegram bot connected", "username", me.Username, "id", me.ID)

	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		if _, err := c.Send(ctx, msg); err != nil {
			slog.Warn("Telegram async send failed", "action", msg.Action, "chat", msg.ChatID, "trace", msg.TraceID, "error", err)
		}
	})

	if c.config.SkipPending {
		if err := c.skipPending(ctx); err != nil {
			slog.Warn("Skipping pending updates failed", "error", err)
		}
	}

	pollCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(pollCtx)
	}()
	return nil
}

// Stop ends polling and waits for the poll loop to exit.
func (c *TelegramChannel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

// Send performs one outbound operation synchronously.
func (c *TelegramChannel) Send(ctx context.Context, msg *bus.OutboundMessage) (int64, error) {
	switch msg.Action {
	case bus.ActionSend, "":
		var out tgMessage
		err := c.call(ctx, "sendMessage", tgSendMessage{
			ChatID:      msg.ChatID,
			Text:        msg.Content,
			ParseMode:   msg.ParseMode,
			ReplyMarkup: markup(msg.Keyboard),
		}, &out)
		return out.MessageID, err
	case bus.ActionEdit:
		err := c.call(ctx, "editMessageText", tgEditMessageText{
			ChatID:      msg.ChatID,
			MessageID:   msg.MessageID,
			Text:        msg.Content,
			ParseMode:   msg.ParseMode,
			ReplyMarkup: markup(msg.Keyboard),
		}, nil)
		return msg.MessageID, ignoreNotModified(err)
	case bus.ActionEditMarkup:
		rm := markup(msg.Keyboard)
		if rm == nil {
			rm = &tgInlineMarkup{InlineKeyboard: [][]tgInlineButton{}}
		}
		err := c.call(ctx, "editMessageReplyMarkup", tgEditMarkup{
			ChatID:      msg.ChatID,
			MessageID:   msg.MessageID,
			ReplyMarkup: rm,
		}, nil)
		return msg.MessageID, ignoreNotModified(err)
	case bus.ActionDelete:
		err := c.call(ctx, "deleteMessage", tgMessageRef{ChatID: msg.ChatID, MessageID: msg.MessageID}, nil)
		return msg.MessageID, err
	case bus.ActionForward:
		var out tgMessage
		err := c.call(ctx, "forwardMessage", tgForward{
			ChatID:     msg.ChatID,
			FromChatID: msg.FromChatID,
			MessageID:  msg.MessageID,
		}, &out)
		return out.MessageID, err
	case bus.ActionAnswer:
		err := c.call(ctx, "answerCallbackQuery", tgAnswerCallback{
			CallbackQueryID: msg.CallbackID,
			Text:            msg.Content,
		}, nil)
		return 0, err
	default:
		return 0, fmt.Errorf("telegram %q: %w", msg.Action, ErrUnsupportedAction)
	}
}

func (c *TelegramChannel) poll(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := c.getUpdates(ctx, c.offset, c.config.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Telegram poll failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= c.offset {
				c.offset = u.UpdateID + 1
			}
			if msg := c.toInbound(u); msg != nil {
				if err := c.Bus.PublishInbound(ctx, msg); err != nil {
					return
				}
			}
		}
	}
}

// skipPending acknowledges everything queued before startup.
func (c *TelegramChannel) skipPending(ctx context.Context) error {
	var updates []tgUpdate
	if err := c.call(ctx, "getUpdates", tgGetUpdates{Offset: -1, Limit: 1}, &updates); err != nil {
		return err
	}
	if len(updates) > 0 {
		c.offset = updates[len(updates)-1].UpdateID + 1
		slog.Info("Skipped pending updates", "offset", c.offset)
	}
	return nil
}

func (c *TelegramChannel) getMe(ctx context.Context) (*tgUser, error) {
	var me tgUser
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *TelegramChannel) getUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]tgUpdate, error) {
	secs := int(timeout.Seconds())
	if secs < 0 {
		secs = 0
	}
	var updates []tgUpdate
	err := c.call(ctx, "getUpdates", tgGetUpdates{
		Offset:         offset,
		Timeout:        secs,
		AllowedUpdates: []string{"message", "callback_query"},
	}, &updates)
	return updates, err
}

func (c *TelegramChannel) toInbound(u tgUpdate) *bus.InboundMessage {
	switch {
	case u.Message != nil && u.Message.Text != "":
		m := u.Message
		kind := classify(m.Text)
		msg := &bus.InboundMessage{
			Channel:   c.Name(),
			Kind:      kind,
			ChatID:    m.Chat.ID,
			MessageID: m.MessageID,
			SenderID:  m.Chat.ID,
			Content:   m.Text,
			Timestamp: time.Unix(m.Date, 0),
		}
		if m.From != nil {
			msg.SenderID = m.From.ID
			msg.SenderName = displayName(m.From)
		}
		return msg
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		msg := &bus.InboundMessage{
			Channel:    c.Name(),
			Kind:       bus.KindCallback,
			SenderID:   q.From.ID,
			SenderName: displayName(&q.From),
			Content:    q.Data,
			CallbackID: q.ID,
		}
		if q.Message != nil {
			msg.ChatID = q.Message.Chat.ID
			msg.MessageID = q.Message.MessageID
		} else {
			msg.ChatID = q.From.ID
		}
		return msg
	}
	return nil
}

// classify maps /start, /language and /a to their event kinds. Anything
// else, unknown commands included, is plain text.
func classify(text string) bus.EventKind {
	if !strings.HasPrefix(text, "/") {
		return bus.KindText
	}
	cmd, _, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	switch strings.ToLower(cmd) {
	case "start":
		return bus.KindStart
	case "language":
		return bus.KindLanguage
	case "a":
		return bus.KindAdmin
	}
	return bus.KindText
}

func (c *TelegramChannel) call(ctx context.Context, method string, body, out any) error {
	var env tgResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&env).
		SetError(&env).
		Post("/" + method)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	if !env.OK {
		desc := env.Description
		if desc == "" {
			desc = resp.Status()
		}
		return &APIError{Method: method, Code: env.ErrorCode, Description: desc}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode: %w", method, err)
		}
	}
	return nil
}

// APIError is an ok=false reply from the Bot API.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

func ignoreNotModified(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified") {
		return nil
	}
	return err
}

func markup(kb bus.Keyboard) *tgInlineMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgInlineButton, 0, len(kb))
	for _, row := range kb {
		r := make([]tgInlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, tgInlineButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, r)
	}
	return &tgInlineMarkup{InlineKeyboard: rows}
}

func displayName(u *tgUser) string {
	if u == nil {
		return ""
	}
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case u.Username != "":
		return "@" + u.Username
	}
	return ""
}

// Bot API wire types.

type tgResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

type tgUpdate struct {
	UpdateID      int64            `json:"update_id"`
	Message       *tgMessage       `json:"message,omitempty"`
	CallbackQuery *tgCallbackQuery `json:"callback_query,omitempty"`
}

type tgMessage struct {
	MessageID int64   `json:"message_id"`
	Date      int64   `json:"date,omitempty"`
	Chat      tgChat  `json:"chat"`
	From      *tgUser `json:"from,omitempty"`
	Text      string  `json:"text,omitempty"`
}

type tgChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type tgCallbackQuery struct {
	ID      string     `json:"id"`
	From    tgUser     `json:"from"`
	Message *tgMessage `json:"message,omitempty"`
	Data    string     `json:"data,omitempty"`
}

type tgGetUpdates struct {
	Offset         int64    `json:"offset,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

type tgInlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type tgInlineMarkup struct {
	InlineKeyboard [][]tgInlineButton `json:"inline_keyboard"`
}

type tgSendMessage struct {
	ChatID      int64           `json:"chat_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode,omitempty"`
	ReplyMarkup *tgInlineMarkup `json:"reply_markup,omitempty"`
}

type tgEditMessageText struct {
	ChatID      int64           `json:"chat_id"`
	MessageID   int64           `json:"message_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode,omitempty"`
	ReplyMarkup *tgInlineMarkup `json:"reply_markup,omitempty"`
}

type tgEditMarkup struct {
	ChatID      int64           `json:"chat_id"`
	MessageID   int64           `json:"message_id"`
	ReplyMarkup *tgInlineMarkup `json:"reply_markup"`
}

type tgMessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

type tgForward struct {
	ChatID     int64 `json:"chat_id"`
	FromChatID int64 `json:"from_chat_id"`
	MessageID  int64 `json:"message_id"`
}

type tgAnswerCallback struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}
