// Package extract recovers a category label from a rendered product page using
// an ordered chain of selectors. The first non-empty match wins.
package extract

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

// Config describes the category markup.
type Config struct {
	// AnchorClasses is the exact class set of the canonical category anchor.
	AnchorClasses []string
	// Container and Wrapper locate the list-item nesting used by breadcrumb markup.
	Container string
	Wrapper   string
}

// DefaultConfig matches the product page breadcrumb markup.
func DefaultConfig() Config {
	return Config{
		AnchorClasses: []string{"a-link-normal", "a-color-tertiary"},
		Container:     "li",
		Wrapper:       "span.a-list-item",
	}
}

// Extractor implements collector.CategoryExtractor.
type Extractor struct {
	cfg    Config
	anchor string
	logger *zap.Logger
}

// New returns an Extractor. Zero fields in cfg take their defaults.
func New(cfg Config, logger *zap.Logger) *Extractor {
	def := DefaultConfig()
	if len(cfg.AnchorClasses) == 0 {
		cfg.AnchorClasses = def.AnchorClasses
	}
	if cfg.Container == "" {
		cfg.Container = def.Container
	}
	if cfg.Wrapper == "" {
		cfg.Wrapper = def.Wrapper
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		cfg:    cfg,
		anchor: "a." + strings.Join(cfg.AnchorClasses, "."),
		logger: logger,
	}
}

// ExtractCategory runs the fallback chain over html. Malformed or unrelated
// markup yields an absent result, never an error.
func (e *Extractor) ExtractCategory(html, baseURL string) collector.CategoryResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Debug("parse page", zap.String("url", baseURL), zap.Error(err))
		return collector.CategoryResult{}
	}

	steps := []struct {
		name string
		find func(*goquery.Document) string
	}{
		{"direct", e.direct},
		{"nested", e.nested},
		{"global", e.global},
	}
	for _, step := range steps {
		if label := step.find(doc); label != "" {
			e.logger.Debug("category found", zap.String("url", baseURL), zap.String("step", step.name), zap.String("category", label))
			return collector.CategoryResult{Label: label, URL: baseURL}
		}
	}
	e.logger.Debug("no category on page", zap.String("url", baseURL))
	return collector.CategoryResult{}
}

// direct takes the first canonical anchor that is not inside a list-item wrapper.
func (e *Extractor) direct(doc *goquery.Document) string {
	sel := doc.Find(e.anchor).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return e.exactClasses(s) && s.Closest(e.cfg.Wrapper).Length() == 0
	}).First()
	return text(sel)
}

// nested takes the first canonical anchor inside container > wrapper.
func (e *Extractor) nested(doc *goquery.Document) string {
	sel := doc.Find(e.cfg.Container + " " + e.cfg.Wrapper + " " + e.anchor).
		FilterFunction(func(_ int, s *goquery.Selection) bool { return e.exactClasses(s) }).
		First()
	return text(sel)
}

// global takes the first anchor carrying the canonical classes, plus any others, with text.
func (e *Extractor) global(doc *goquery.Document) string {
	var label string
	doc.Find(e.anchor).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label = text(s)
		return label == ""
	})
	return label
}

func (e *Extractor) exactClasses(s *goquery.Selection) bool {
	class, _ := s.Attr("class")
	got := strings.Fields(class)
	if len(got) != len(e.cfg.AnchorClasses) {
		return false
	}
	for _, c := range e.cfg.AnchorClasses {
		if !slices.Contains(got, c) {
			return false
		}
	}
	return true
}

func text(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(s.Text())
}
