// Package resolver fetches a target URL through a fresh humanized browser
// session and reports the outcome as a tagged ResolvedPage.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
	"github.com/JakeFAU/dealfeed-collector/internal/metrics"
)

const (
	defaultNavigationTimeout = 120 * time.Second
	defaultCaptchaSelector   = "input#captchacharacters"
	defaultInteractions      = 2
)

// Humanizer is the subset of the humanization engine the resolver drives.
type Humanizer interface {
	DismissInterstitial(ctx context.Context, page collector.Page)
	RunStrategies(ctx context.Context, page collector.Page, n int) []string
}

// Limiter paces resolutions per domain.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Config tunes a Resolver.
type Config struct {
	NavigationTimeout time.Duration
	CaptchaSelector   string
	// Interactions is how many humanization strategies run after load.
	Interactions int
}

// Resolver implements collector.PageResolver.
type Resolver struct {
	cfg      Config
	sessions collector.SessionFactory
	human    Humanizer
	limiter  Limiter
	logger   *zap.Logger
}

// New wires a Resolver. limiter may be nil.
func New(cfg Config, sessions collector.SessionFactory, human Humanizer, limiter Limiter, logger *zap.Logger) *Resolver {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.CaptchaSelector == "" {
		cfg.CaptchaSelector = defaultCaptchaSelector
	}
	if cfg.Interactions <= 0 {
		cfg.Interactions = defaultInteractions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, sessions: sessions, human: human, limiter: limiter, logger: logger}
}

// Resolve opens a new session for url, clears interstitials, checks for a
// captcha and captures the final URL and rendered HTML. It never returns a
// partially filled page and never retries.
func (r *Resolver) Resolve(ctx context.Context, url string) collector.ResolvedPage {
	page := r.resolve(ctx, url)
	metrics.ObserveResolution(url, string(page.Status))

	log := r.logger.With(zap.String("url", url), zap.String("status", string(page.Status)))
	switch page.Status {
	case collector.PageStatusOK:
		log.Debug("page resolved", zap.String("final_url", page.FinalURL))
	case collector.PageStatusCaptcha:
		log.Warn("captcha detected")
	default:
		log.Warn("resolution failed", zap.Error(page.Err))
	}
	return page
}

func (r *Resolver) resolve(ctx context.Context, url string) collector.ResolvedPage {
	profile := r.sessions.CreateProfile()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, url); err != nil {
			return collector.ErrorPage(fmt.Errorf("%w: %v", collector.ErrNavigation, err))
		}
	}

	session, err := r.sessions.OpenSession(ctx, profile)
	if err != nil {
		if !errors.Is(err, collector.ErrSession) {
			err = fmt.Errorf("%w: %v", collector.ErrSession, err)
		}
		return collector.ErrorPage(err)
	}
	defer session.Close()

	tab := session.Page()

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
	err = tab.Navigate(navCtx, url)
	cancel()
	if err != nil {
		return collector.ErrorPage(fmt.Errorf("%w: %s: %v", collector.ErrNavigation, url, err))
	}

	r.human.DismissInterstitial(ctx, tab)

	captcha, err := tab.Exists(ctx, r.cfg.CaptchaSelector)
	if err != nil {
		r.logger.Debug("captcha probe failed", zap.String("url", url), zap.Error(err))
	}
	if captcha {
		return collector.CaptchaPage()
	}

	r.human.RunStrategies(ctx, tab, r.cfg.Interactions)

	finalURL, err := tab.Location(ctx)
	if err != nil {
		return collector.ErrorPage(fmt.Errorf("%w: read location: %v", collector.ErrNavigation, err))
	}
	html, err := tab.HTML(ctx)
	if err != nil {
		return collector.ErrorPage(fmt.Errorf("%w: read document: %v", collector.ErrNavigation, err))
	}
	return collector.OKPage(html, finalURL)
}
