package telegram

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

var backgroundURL = regexp.MustCompile(`url\(['"]?([^'")]+)['"]?\)`)

func parseMessage(s *goquery.Selection) (collector.Message, error) {
	post, _ := s.Attr("data-post")
	id, err := postID(post)
	if err != nil {
		return collector.Message{}, err
	}

	msg := collector.Message{ID: id}

	body := s.Find(".tgme_widget_message_text").First()
	if body.Length() > 0 {
		body.Find("br").ReplaceWithHtml("\n")
		msg.Text = strings.TrimSpace(body.Text())
		body.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
				msg.Entities = append(msg.Entities, collector.Entity{Kind: collector.EntityTextURL, URL: href})
			}
		})
	}

	if views := strings.TrimSpace(s.Find(".tgme_widget_message_views").First().Text()); views != "" {
		msg.Views = ParseViews(views)
	}

	if style, ok := s.Find("a.tgme_widget_message_photo_wrap").First().Attr("style"); ok {
		if m := backgroundURL.FindStringSubmatch(style); m != nil {
			msg.HasPhoto = true
			msg.PhotoURL = m[1]
		}
	}

	if dt, ok := s.Find(".tgme_widget_message_date time[datetime]").First().Attr("datetime"); ok {
		if ts, err := time.Parse(time.RFC3339, dt); err == nil {
			msg.PostedAt = ts.UTC()
		}
	}
	return msg, nil
}

func postID(post string) (int64, error) {
	i := strings.LastIndex(post, "/")
	if i < 0 || i == len(post)-1 {
		return 0, fmt.Errorf("malformed data-post %q", post)
	}
	id, err := strconv.ParseInt(post[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed data-post %q: %w", post, err)
	}
	return id, nil
}

// ParseViews converts preview counters such as "987", "1.2K" or "3M" to integers.
// Unparsable input yields 0.
func ParseViews(s string) int {
	s = strings.ToUpper(strings.TrimSpace(s))
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1e3, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1e6, strings.TrimSuffix(s, "M")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v < 0 {
		return 0
	}
	return int(v*mult + 0.5)
}
