// Package browser builds randomized browsing profiles and opens isolated
// chromedp sessions for them.
package browser

import (
	"slices"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
	"github.com/JakeFAU/dealfeed-collector/internal/random"
)

var userAgents = map[collector.Engine][]string{
	collector.EngineChrome: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	},
	collector.EngineEdge: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
	},
}

// Resolution is a viewport with its selection weight.
type Resolution struct {
	Viewport collector.Viewport
	Weight   float64
}

// Resolutions is the weighted viewport table. Weights sum to 1.
var Resolutions = []Resolution{
	{collector.Viewport{Width: 1920, Height: 1080}, 0.40},
	{collector.Viewport{Width: 1366, Height: 768}, 0.30},
	{collector.Viewport{Width: 1440, Height: 900}, 0.15},
	{collector.Viewport{Width: 2560, Height: 1440}, 0.10},
	{collector.Viewport{Width: 1600, Height: 900}, 0.05},
}

// Languages is the fixed locale table; each entry is ordered most to least specific.
var Languages = [][]string{
	{"en-US", "en-GB", "en"},
	{"fr-FR", "fr-CA", "fr"},
	{"de-DE", "de-AT", "de"},
	{"es-ES", "es-MX", "es"},
	{"it-IT", "it"},
	{"pt-PT", "pt-BR", "pt"},
	{"nl-NL", "nl"},
	{"ja-JP", "ja"},
	{"zh-CN", "zh-TW", "zh"},
	{"ru-RU", "ru"},
}

// UserAgents returns the pool for engine, falling back to Chrome.
func UserAgents(engine collector.Engine) []string {
	if pool, ok := userAgents[engine]; ok {
		return pool
	}
	return userAgents[collector.EngineChrome]
}

// CreateProfile draws a fresh fingerprint: engine uniformly from the configured
// set, a user agent from that engine's pool, a weighted viewport and a locale tuple.
func (f *Factory) CreateProfile() collector.BrowsingProfile {
	engine := random.Choice(f.rng, f.engines)

	weights := make([]float64, len(Resolutions))
	for i, r := range Resolutions {
		weights[i] = r.Weight
	}
	viewport := Resolutions[random.Weighted(f.rng, weights)].Viewport

	return collector.BrowsingProfile{
		Engine:    engine,
		UserAgent: random.Choice(f.rng, UserAgents(engine)),
		Viewport:  viewport,
		Locales:   slices.Clone(random.Choice(f.rng, Languages)),
		Proxy:     f.cfg.Proxy,
	}
}
