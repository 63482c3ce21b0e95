// Package humanize drives synthetic pointer, scroll and keyboard activity on an
// open page and clears known interstitials before a page is captured.
package humanize

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
	"github.com/JakeFAU/dealfeed-collector/internal/random"
)

// NavigationKeys is the fixed key set SimulateKeys draws from.
var NavigationKeys = []string{
	"ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight",
	"Home", "End", "PageUp", "PageDown", "Tab", "Enter",
}

// Control is a clickable element that dismisses an interstitial.
type Control struct {
	collector.Locator
	// PressKeys runs SimulateKeys after a successful click.
	PressKeys bool
}

// DefaultControls are tried in order; the first visible match is clicked.
var DefaultControls = []Control{
	{Locator: collector.Locator{Selector: "button", Text: "Continue shopping"}, PressKeys: true},
	{Locator: collector.Locator{Selector: `button.a-button-text[alt="Continue shopping"]`}},
}

// Sleeper blocks for d. Pauses are short and intentionally ignore cancellation.
type Sleeper func(d time.Duration)

// Engine performs humanization steps. It is not safe for concurrent use when
// backed by a non-concurrent random source.
type Engine struct {
	rng      random.Source
	sleep    Sleeper
	scale    float64
	controls []Control
	selector Selector
	logger   *zap.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithSleeper replaces time.Sleep, mostly for tests.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) {
		if s != nil {
			e.sleep = s
		}
	}
}

// WithPauseScale multiplies every pause. Values <= 0 are ignored.
func WithPauseScale(scale float64) Option {
	return func(e *Engine) {
		if scale > 0 {
			e.scale = scale
		}
	}
}

// WithControls overrides the interstitial controls.
func WithControls(controls []Control) Option {
	return func(e *Engine) {
		if len(controls) > 0 {
			e.controls = controls
		}
	}
}

// WithSelector overrides the strategy selector.
func WithSelector(sel Selector) Option {
	return func(e *Engine) {
		if sel != nil {
			e.selector = sel
		}
	}
}

// New returns an Engine drawing from rng. A nil rng is seeded from the clock.
func New(rng random.Source, logger *zap.Logger, opts ...Option) *Engine {
	if rng == nil {
		rng = random.NewDefault()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		rng:      rng,
		sleep:    time.Sleep,
		scale:    1,
		controls: DefaultControls,
		logger:   logger,
	}
	e.selector = WeightedSelector(rng)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type scrollMetrics struct {
	Viewport float64 `json:"viewport"`
	Document float64 `json:"document"`
	Offset   float64 `json:"offset"`
}

type viewportSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

const (
	scrollMetricsJS = `({viewport: window.innerHeight, document: Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight), offset: window.scrollY})`
	viewportJS      = `({width: window.innerWidth, height: window.innerHeight})`
)

// SimulateScroll scrolls 1-6 steps of 30-70% of the viewport, mostly downward,
// staying inside the document and stopping once the bottom is reached.
func (e *Engine) SimulateScroll(ctx context.Context, page collector.Page) {
	e.guard("scroll", func() error {
		var m scrollMetrics
		if err := page.Evaluate(ctx, scrollMetricsJS, &m); err != nil {
			return err
		}
		bottom := max(m.Document-m.Viewport, 0)
		pos := min(max(m.Offset, 0), bottom)

		steps := random.Between(e.rng, 1, 6)
		for range steps {
			delta := m.Viewport * random.Uniform(e.rng, 0.3, 0.7)
			up := pos > 0 && e.rng.Float64() < 0.2
			if up {
				pos = max(pos-delta, 0)
			} else {
				pos = min(pos+delta, bottom)
			}
			if err := page.Evaluate(ctx, fmt.Sprintf("window.scrollTo(0, %d)", int(pos)), nil); err != nil {
				return err
			}
			e.pause(500*time.Millisecond, 2*time.Second)
			if !up && pos >= bottom {
				break
			}
		}
		return nil
	})
}

// SimulatePointer moves the pointer along 2-6 quadratic Bézier paths to random
// targets inside the viewport.
func (e *Engine) SimulatePointer(ctx context.Context, page collector.Page) {
	e.guard("pointer", func() error {
		var vp viewportSize
		if err := page.Evaluate(ctx, viewportJS, &vp); err != nil {
			return err
		}
		const margin = 50.0
		cur := Point{X: vp.Width / 2, Y: vp.Height / 2}

		moves := random.Between(e.rng, 2, 6)
		for range moves {
			target := Point{
				X: random.Uniform(e.rng, margin, vp.Width-margin),
				Y: random.Uniform(e.rng, margin, vp.Height-margin),
			}
			control := Point{
				X: cur.X + (target.X-cur.X)*random.Uniform(e.rng, 0.3, 0.7),
				Y: cur.Y + (target.Y-cur.Y)*random.Uniform(e.rng, 0.3, 0.7),
			}
			samples := random.Between(e.rng, 10, 20)
			for i := 1; i <= samples; i++ {
				p := QuadraticBezier(cur, control, target, float64(i)/float64(samples))
				if err := page.MouseMove(ctx, p.X, p.Y); err != nil {
					return err
				}
				e.pause(10*time.Millisecond, 30*time.Millisecond)
			}
			cur = target
			e.pause(200*time.Millisecond, 800*time.Millisecond)
		}
		return nil
	})
}

// SimulateKeys presses a random-length selection of NavigationKeys.
func (e *Engine) SimulateKeys(ctx context.Context, page collector.Page) {
	e.guard("keys", func() error {
		n := random.Between(e.rng, 1, len(NavigationKeys)-1)
		for range n {
			key := random.Choice(e.rng, NavigationKeys)
			if err := page.PressKey(ctx, key); err != nil {
				return err
			}
			e.pause(120*time.Millisecond, 240*time.Millisecond)
		}
		return nil
	})
}

// DismissInterstitial wiggles the pointer, waits, then clicks the first visible
// continue control. A page without an interstitial is left untouched.
func (e *Engine) DismissInterstitial(ctx context.Context, page collector.Page) {
	e.SimulatePointer(ctx, page)
	wait := time.Duration(random.Uniform(e.rng, 1, 3) * random.Uniform(e.rng, 1600, 5200) * float64(time.Millisecond))
	e.sleep(e.scaled(wait))

	e.guard("interstitial", func() error {
		for _, c := range e.controls {
			box, ok, err := page.Locate(ctx, c.Locator)
			if err != nil {
				e.logger.Debug("interstitial lookup failed", zap.String("selector", c.Selector), zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			x, y := box.Center()
			if err := page.Click(ctx, x, y); err != nil {
				return fmt.Errorf("click %s: %w", c.Selector, err)
			}
			e.logger.Debug("interstitial dismissed", zap.String("selector", c.Selector), zap.String("text", c.Text))
			if c.PressKeys {
				e.SimulateKeys(ctx, page)
			}
			return nil
		}
		e.logger.Debug("no interstitial control present")
		return nil
	})
}

func (e *Engine) pause(lo, hi time.Duration) {
	e.sleep(e.scaled(random.Duration(e.rng, lo, hi)))
}

func (e *Engine) scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * e.scale)
}

// guard turns step failures and panics into logged no-ops.
func (e *Engine) guard(step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("humanization step panicked", zap.String("step", step), zap.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		e.logger.Debug("humanization step failed", zap.String("step", step), zap.Error(err))
	}
}
