// Package translator turns text into a translation by loading the web
// translator in a browser page and reading the rendered result.
package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deeplbot/deeplbot/internal/browser"
	"github.com/deeplbot/deeplbot/internal/config"
)

var sanitizer = strings.NewReplacer("\n", "%0A", "\t", "%09", "#", "%23")

// Sanitize escapes the characters that would break the fragment-encoded
// request: newline, tab and '#'. Everything else passes through unchanged.
func Sanitize(text string) string {
	return sanitizer.Replace(text)
}

// BuildTarget returns the translator URL for lang and sanitized text.
func BuildTarget(base, lang, sanitized string) string {
	return base + "#*/" + lang + "/" + sanitized
}

// FilterOutput strips the " ." artifacts the translator leaves in its output.
func FilterOutput(text string) string {
	return strings.ReplaceAll(text, " .", "")
}

// PageSource hands out browser pages.
type PageSource interface {
	AcquirePage(ctx context.Context) (browser.Page, error)
}

// LanguageSource resolves an identity's target language.
type LanguageSource interface {
	Language(ctx context.Context, id int64) string
}

// Result is one completed translation. Empty Text means the translator
// produced nothing.
type Result struct {
	Language string
	Text     string
	Elapsed  time.Duration
}

// Pipeline runs translations against the browser engine.
type Pipeline struct {
	pages    PageSource
	langs    LanguageSource
	base     string
	selector string
	wait     time.Duration
}

// New returns a Pipeline using cfg's translator URL, result selector and
// result timeout. A non-positive timeout falls back to the default one.
func New(pages PageSource, langs LanguageSource, cfg config.EngineConfig) *Pipeline {
	wait := cfg.ResultTimeout
	if wait <= 0 {
		wait = config.DefaultConfig().Engine.ResultTimeout
	}
	return &Pipeline{
		pages:    pages,
		langs:    langs,
		base:     cfg.BaseURL,
		selector: cfg.ResultSelector,
		wait:     wait,
	}
}

// Translate translates text into id's configured language. A result that
// never appears within the result timeout yields an empty Result, not an
// error. Failures to reach the engine wrap browser.ErrEngineUnavailable.
func (p *Pipeline) Translate(ctx context.Context, id int64, text string) (Result, error) {
	start := time.Now()
	lang := p.langs.Language(ctx, id)
	res := Result{Language: lang}

	page, err := p.pages.AcquirePage(ctx)
	if err != nil {
		return res, fmt.Errorf("translate: %w", err)
	}
	defer page.Release()

	target := BuildTarget(p.base, lang, Sanitize(text))
	if err := page.Navigate(ctx, target); err != nil {
		return res, fmt.Errorf("translate: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.wait)
	defer cancel()
	if err := page.WaitResult(waitCtx, p.selector); err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		slog.Debug("Translation result wait ended", "identity", id, "lang", lang, "error", err)
	}

	out, err := page.ResultText(ctx, p.selector)
	if err != nil {
		return res, fmt.Errorf("translate: %w", err)
	}
	res.Text = FilterOutput(out)
	res.Elapsed = time.Since(start)
	return res, nil
}

// IsUnavailable reports whether err means the engine could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, browser.ErrEngineUnavailable)
}
