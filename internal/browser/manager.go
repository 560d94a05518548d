// Package browser owns the headless browser that renders the web translator
// and hands out one page per translation.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/deeplbot/deeplbot/internal/config"
	"github.com/deeplbot/deeplbot/internal/scheduler"
	"github.com/go-rod/rod/lib/launcher"
)

// ErrEngineUnavailable is returned when no page can be opened on the
// browser, even after a relaunch.
var ErrEngineUnavailable = errors.New("browser: engine unavailable")

// Page is a single browser tab on its own DevTools connection.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitResult blocks until the element matched by selector holds text.
	WaitResult(ctx context.Context, selector string) error
	ResultText(ctx context.Context, selector string) (string, error)
	// Release closes the tab and its connection. It never stops the browser
	// and is safe to call more than once.
	Release()
}

type (
	launchFunc  func() (endpoint string, stop func(), err error)
	connectFunc func(ctx context.Context, endpoint string) (Page, error)
)

// Manager keeps one browser process alive and records its DevTools endpoint.
// No connection is held between pages.
type Manager struct {
	cfg     config.EngineConfig
	launch  launchFunc
	connect connectFunc
	slots   *scheduler.Semaphore

	mu         sync.Mutex
	endpoint   string
	stop       func()
	owned      bool
	generation int
}

// NewManager builds a manager for cfg. Nothing is started until Start.
func NewManager(cfg config.EngineConfig) *Manager {
	m := &Manager{cfg: cfg, connect: connectRod}
	m.launch = m.launchChrome
	if cfg.MaxPages > 0 {
		m.slots = scheduler.NewSemaphore(cfg.MaxPages)
	}
	return m
}

// Start launches the browser, or resolves the configured external endpoint.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.endpoint != "" {
		return nil
	}
	if m.cfg.DebuggerURL != "" {
		endpoint, err := launcher.ResolveURL(m.cfg.DebuggerURL)
		if err != nil {
			return fmt.Errorf("resolve debugger url: %w", err)
		}
		m.endpoint = endpoint
		m.owned = false
		slog.Info("Browser engine attached", "endpoint", endpoint)
		return nil
	}

	endpoint, stop, err := m.launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	m.endpoint = endpoint
	m.stop = stop
	m.owned = true
	m.generation++
	slog.Info("Browser engine started", "endpoint", endpoint)
	return nil
}

// Endpoint returns the DevTools websocket URL of the running browser.
func (m *Manager) Endpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint
}

// AcquirePage opens a fresh connection and a blank page. If connecting
// fails and the manager owns the browser, the browser is relaunched once
// and the connection retried.
func (m *Manager) AcquirePage(ctx context.Context) (Page, error) {
	if m.slots != nil {
		if err := m.slots.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	p, err := m.open(ctx)
	if err != nil {
		if m.slots != nil {
			m.slots.Release()
		}
		return nil, err
	}
	if m.slots == nil {
		return p, nil
	}
	slog.Debug("Page acquired", "in_use", m.slots.InUse(), "max", m.slots.Cap())
	return &slotPage{Page: p, free: m.slots.Release}, nil
}

func (m *Manager) open(ctx context.Context) (Page, error) {
	m.mu.Lock()
	endpoint, gen, owned := m.endpoint, m.generation, m.owned
	m.mu.Unlock()

	restart := owned && m.cfg.Restart
	if endpoint == "" && !restart {
		return nil, fmt.Errorf("not started: %w", ErrEngineUnavailable)
	}
	if endpoint != "" {
		p, err := m.dial(ctx, endpoint)
		if err == nil {
			return p, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !restart {
			return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		slog.Warn("Browser connection failed, relaunching", "endpoint", endpoint, "error", err)
	}

	endpoint, err := m.relaunch(gen)
	if err != nil {
		return nil, fmt.Errorf("%w: relaunch: %v", ErrEngineUnavailable, err)
	}
	p, err := m.dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return p, nil
}

func (m *Manager) dial(ctx context.Context, endpoint string) (Page, error) {
	if m.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		defer cancel()
	}
	return m.connect(ctx, endpoint)
}

// relaunch replaces the browser unless another caller already did so for
// the generation that failed. A failed launch leaves the generation as is,
// so the next acquire tries again.
func (m *Manager) relaunch(failed int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != failed && m.endpoint != "" {
		return m.endpoint, nil
	}
	if !m.owned {
		return "", errors.New("engine stopped")
	}
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	endpoint, stop, err := m.launch()
	if err != nil {
		m.endpoint = ""
		return "", err
	}
	m.endpoint = endpoint
	m.stop = stop
	m.generation++
	slog.Info("Browser engine relaunched", "endpoint", endpoint, "generation", m.generation)
	return endpoint, nil
}

// Healthy opens and releases one page.
func (m *Manager) Healthy(ctx context.Context) error {
	m.mu.Lock()
	endpoint := m.endpoint
	m.mu.Unlock()
	if endpoint == "" {
		return fmt.Errorf("not started: %w", ErrEngineUnavailable)
	}
	p, err := m.dial(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	p.Release()
	return nil
}

// Shutdown stops the browser if this manager launched it.
func (m *Manager) Shutdown(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stop != nil {
		m.stop()
		m.stop = nil
		slog.Info("Browser engine stopped", "endpoint", m.endpoint)
	}
	m.endpoint = ""
	m.owned = false
	return nil
}

// slotPage frees its semaphore slot on the first Release.
type slotPage struct {
	Page
	once sync.Once
	free func()
}

func (p *slotPage) Release() {
	p.once.Do(func() {
		p.Page.Release()
		p.free()
	})
}
