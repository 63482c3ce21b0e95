package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

var urlPattern = regexp.MustCompile(`(?i)https?://[^\s]+`)

const trailingPunct = `.,;:!?)]}>"'»`

// DefaultPatterns match the marketplace's full and short-link domains.
var DefaultPatterns = []string{"amazon", "amzn"}

// ExtractLinks returns every link found in msg, deduplicated by normalized key
// in discovery order: plain-text URLs first, then link entities.
func ExtractLinks(msg collector.Message, patterns []string) []collector.CandidateLink {
	raws := urlPattern.FindAllString(msg.Text, -1)
	for _, ent := range msg.Entities {
		switch ent.Kind {
		case collector.EntityTextURL:
			raws = append(raws, ent.URL)
		case collector.EntityURL:
			if s, ok := utf16Span(msg.Text, ent.Offset, ent.Length); ok {
				raws = append(raws, s)
			}
		}
	}

	seen := make(map[string]struct{}, len(raws))
	links := make([]collector.CandidateLink, 0, len(raws))
	for _, raw := range raws {
		raw = strings.TrimRight(strings.TrimSpace(raw), trailingPunct)
		if raw == "" {
			continue
		}
		abs := raw
		if !strings.Contains(abs, "://") {
			abs = "https://" + abs
		}
		key, err := collector.NormalizeURL(abs)
		if err != nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		links = append(links, collector.CandidateLink{
			Raw:         raw,
			URL:         abs,
			Key:         key,
			DomainMatch: collector.MatchesDomain(key, patterns),
		})
	}
	return links
}

// ScanLinks returns only the links that match patterns.
func ScanLinks(msg collector.Message, patterns []string) []collector.CandidateLink {
	all := ExtractLinks(msg, patterns)
	out := all[:0]
	for _, l := range all {
		if l.DomainMatch {
			out = append(out, l)
		}
	}
	return out
}

// utf16Span slices text by UTF-16 code unit offsets, as feed entities are encoded.
func utf16Span(text string, offset, length int) (string, bool) {
	units := utf16.Encode([]rune(text))
	if offset < 0 || length <= 0 || offset+length > len(units) {
		return "", false
	}
	return string(utf16.Decode(units[offset : offset+length])), true
}
