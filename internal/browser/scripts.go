package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

type locateResult struct {
	Found  bool    `json:"found"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

const locateTemplate = `(() => {
	const sel = %s, text = %s;
	for (const el of document.querySelectorAll(sel)) {
		if (text !== "" && el.textContent.trim() !== text) continue;
		const style = window.getComputedStyle(el);
		if (style.visibility === "hidden" || style.display === "none") continue;
		let r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		el.scrollIntoView({block: "center", inline: "center"});
		r = el.getBoundingClientRect();
		return {found: true, x: r.x, y: r.y, width: r.width, height: r.height};
	}
	return {found: false, x: 0, y: 0, width: 0, height: 0};
})()`

// LocateScript builds the expression used by Page.Locate.
func LocateScript(loc collector.Locator) string {
	return fmt.Sprintf(locateTemplate, jsString(loc.Selector), jsString(loc.Text))
}

// ExistsScript builds a non-waiting presence probe for selector.
func ExistsScript(selector string) string {
	return fmt.Sprintf("document.querySelector(%s) !== null", jsString(selector))
}

// LanguagesScript pins navigator.languages to the profile's locale tuple.
func LanguagesScript(locales []string) string {
	if len(locales) == 0 {
		return ""
	}
	list, _ := json.Marshal(locales)
	return fmt.Sprintf(`Object.defineProperty(Object.getPrototypeOf(navigator), "languages", {get: () => %s});
Object.defineProperty(Object.getPrototypeOf(navigator), "language", {get: () => %s});`, list, jsString(locales[0]))
}

// AcceptLanguage renders a locale tuple as an Accept-Language header value.
func AcceptLanguage(locales []string) string {
	parts := make([]string, 0, len(locales))
	for i, l := range locales {
		if i == 0 {
			parts = append(parts, l)
			continue
		}
		q := 1.0 - float64(i)*0.1
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", l, q))
	}
	return strings.Join(parts, ",")
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
