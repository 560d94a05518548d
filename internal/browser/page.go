package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// textOf reads an element's value, falling back to its text content.
const textOf = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return "";
	const v = (typeof el.value === "string" && el.value !== "") ? el.value : (el.textContent || "");
	return v;
}`

// hasText reports whether the element holds any output yet.
const hasText = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	const v = (typeof el.value === "string" && el.value !== "") ? el.value : (el.textContent || "");
	return v.length > 0;
}`

// launchChrome starts a detached browser process. The launcher is not tied
// to a request context so the process outlives the call.
func (m *Manager) launchChrome() (string, func(), error) {
	l := launcher.New().Headless(m.cfg.Headless)
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}
	for _, raw := range m.cfg.Flags {
		name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
		if name == "" {
			continue
		}
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	endpoint, err := l.Launch()
	if err != nil {
		return "", nil, err
	}
	return endpoint, func() {
		l.Kill()
		l.Cleanup()
	}, nil
}

// connectRod opens a dedicated websocket to endpoint and a blank tab on it.
func connectRod(ctx context.Context, endpoint string) (Page, error) {
	ws := &cdp.WebSocket{}
	if err := ws.Connect(ctx, endpoint, nil); err != nil {
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}
	b := rod.New().Client(cdp.New().Start(ws))
	if err := b.Connect(); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("attach browser: %w", err)
	}
	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &rodPage{ws: ws, page: page.Context(context.Background())}, nil
}

type rodPage struct {
	ws   *cdp.WebSocket
	page *rod.Page
	once sync.Once
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

func (p *rodPage) WaitResult(ctx context.Context, selector string) error {
	return p.page.Context(ctx).Wait(rod.Eval(hasText, selector))
}

func (p *rodPage) ResultText(ctx context.Context, selector string) (string, error) {
	res, err := p.page.Context(ctx).Eval(textOf, selector)
	if err != nil {
		return "", fmt.Errorf("read result: %w", err)
	}
	return res.Value.Str(), nil
}

func (p *rodPage) Release() {
	p.once.Do(func() {
		if err := p.page.Close(); err != nil {
			slog.Debug("Page close failed", "error", err)
		}
		if err := p.ws.Close(); err != nil {
			slog.Debug("DevTools disconnect failed", "error", err)
		}
	})
}
