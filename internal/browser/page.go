package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

var keyCodes = map[string]string{
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
	"Tab":        kb.Tab,
	"Enter":      kb.Enter,
}

// Page drives one chromedp tab.
type Page struct {
	ctx context.Context
}

// run executes actions on the tab while honouring the caller's deadline and cancellation.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	defer cancel()

	stop := forwardCancel(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the document body.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Evaluate runs expression and decodes the result into out (which may be nil).
func (p *Page) Evaluate(ctx context.Context, expression string, out any) error {
	if err := p.run(ctx, chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// MouseMove dispatches a pointer move to (x, y).
func (p *Page) MouseMove(ctx context.Context, x, y float64) error {
	if err := p.run(ctx, chromedp.MouseEvent(input.MouseMoved, x, y)); err != nil {
		return fmt.Errorf("mouse move: %w", err)
	}
	return nil
}

// Click presses and releases the left button at (x, y).
func (p *Page) Click(ctx context.Context, x, y float64) error {
	if err := p.run(ctx, chromedp.MouseClickXY(x, y)); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

// PressKey sends a named navigation key (e.g. "ArrowDown") or literal text.
func (p *Page) PressKey(ctx context.Context, key string) error {
	code, ok := keyCodes[key]
	if !ok {
		code = key
	}
	if err := p.run(ctx, chromedp.KeyEvent(code)); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

// Locate finds the first visible element matching loc.
func (p *Page) Locate(ctx context.Context, loc collector.Locator) (collector.Box, bool, error) {
	var res locateResult
	if err := p.Evaluate(ctx, LocateScript(loc), &res); err != nil {
		return collector.Box{}, false, err
	}
	if !res.Found {
		return collector.Box{}, false, nil
	}
	return collector.Box{X: res.X, Y: res.Y, Width: res.Width, Height: res.Height}, true, nil
}

// Exists reports whether selector matches anything, without waiting for it.
func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	if err := p.Evaluate(ctx, ExistsScript(selector), &found); err != nil {
		return false, err
	}
	return found, nil
}

// Location returns the current (possibly redirected) URL.
func (p *Page) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("location: %w", err)
	}
	return loc, nil
}

// HTML returns the full rendered document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
