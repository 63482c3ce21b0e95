package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
	"github.com/JakeFAU/dealfeed-collector/internal/random"
)

// Config controls how sessions are launched.
type Config struct {
	Engines []collector.Engine
	// ExecPaths optionally pins a browser binary per engine.
	ExecPaths map[collector.Engine]string
	Headless  bool
	Stealth   bool
	Proxy     collector.ProxyConfig
}

// Factory implements collector.SessionFactory on top of chromedp.
type Factory struct {
	cfg     Config
	engines []collector.Engine
	rng     random.Source
	logger  *zap.Logger
}

// NewFactory validates cfg and returns a Factory. rng may be nil.
func NewFactory(cfg Config, rng random.Source, logger *zap.Logger) (*Factory, error) {
	if strings.TrimSpace(cfg.Proxy.Server) == "" {
		return nil, fmt.Errorf("proxy server is required")
	}
	engines := cfg.Engines
	if len(engines) == 0 {
		engines = []collector.Engine{collector.EngineChrome, collector.EngineEdge}
	}
	for _, e := range engines {
		if _, ok := userAgents[e]; !ok {
			return nil, fmt.Errorf("unknown browser engine %q", e)
		}
	}
	if rng == nil {
		rng = random.NewDefault()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{cfg: cfg, engines: engines, rng: rng, logger: logger}, nil
}

// Session is one isolated browser process with a single tab. Nothing is shared
// between sessions: each launch gets a fresh user data directory.
type Session struct {
	page          *Page
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// Page returns the session's tab.
func (s *Session) Page() collector.Page {
	return s.page
}

// Close terminates the browser process.
func (s *Session) Close() {
	s.browserCancel()
	s.allocCancel()
}

// OpenSession launches a browser configured with profile and its upstream proxy.
// Any launch or setup failure is reported as collector.ErrSession.
func (f *Factory) OpenSession(ctx context.Context, profile collector.BrowsingProfile) (collector.Session, error) {
	if strings.TrimSpace(profile.Proxy.Server) == "" {
		return nil, fmt.Errorf("%w: proxy server is required", collector.ErrSession)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.allocatorOptions(profile)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(f.logger.Sugar().Debugf))

	if profile.Proxy.Username != "" {
		listenProxyAuth(browserCtx, profile.Proxy, f.logger)
	}

	if err := chromedp.Run(browserCtx, f.setupAction(profile)); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: launch %s: %v", collector.ErrSession, profile.Engine, err)
	}

	f.logger.Debug("browser session opened",
		zap.String("engine", string(profile.Engine)),
		zap.Int("width", profile.Viewport.Width),
		zap.Int("height", profile.Viewport.Height),
		zap.Strings("locales", profile.Locales),
	)

	return &Session{
		page:          &Page{ctx: browserCtx},
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

func (f *Factory) allocatorOptions(profile collector.BrowsingProfile) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("hide-scrollbars", false),
		chromedp.UserAgent(profile.UserAgent),
		chromedp.WindowSize(profile.Viewport.Width, profile.Viewport.Height),
		chromedp.ProxyServer(profile.Proxy.Server),
	)
	if len(profile.Locales) > 0 {
		opts = append(opts, chromedp.Flag("lang", profile.Locales[0]))
	}
	if path := f.cfg.ExecPaths[profile.Engine]; path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	return opts
}

func (f *Factory) setupAction(profile collector.BrowsingProfile) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if profile.Proxy.Username != "" {
			if err := fetch.Enable().WithHandleAuthRequests(true).Do(ctx); err != nil {
				return fmt.Errorf("enable proxy auth: %w", err)
			}
		}
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		override := emulation.SetUserAgentOverride(profile.UserAgent)
		if accept := AcceptLanguage(profile.Locales); accept != "" {
			override = override.WithAcceptLanguage(accept)
		}
		if err := override.Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if len(profile.Locales) > 0 {
			locale := strings.ReplaceAll(profile.Locales[0], "-", "_")
			if err := emulation.SetLocaleOverride().WithLocale(locale).Do(ctx); err != nil {
				return fmt.Errorf("set locale: %w", err)
			}
		}
		script := LanguagesScript(profile.Locales)
		if f.cfg.Stealth {
			script = stealth.JS + "\n" + script
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			return fmt.Errorf("install init script: %w", err)
		}
		return nil
	})
}

// listenProxyAuth answers proxy credential challenges for the lifetime of ctx.
func listenProxyAuth(ctx context.Context, proxy collector.ProxyConfig, logger *zap.Logger) {
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				err := chromedp.Run(ctx, fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: proxy.Username,
					Password: proxy.Password,
				}))
				if err != nil {
					logger.Debug("proxy auth reply failed", zap.Error(err))
				}
			}()
		case *fetch.EventRequestPaused:
			go func() {
				if err := chromedp.Run(ctx, fetch.ContinueRequest(e.RequestID)); err != nil {
					logger.Debug("continue paused request failed", zap.Error(err))
				}
			}()
		}
	})
}
