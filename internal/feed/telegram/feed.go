// Package telegram reads a public channel through its web preview
// (https://t.me/s/<channel>), newest messages first.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

const messageSelector = "div.tgme_widget_message[data-post]"

// Downloader fetches attachment bytes.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Config controls the feed.
type Config struct {
	Channel   string
	BaseURL   string
	Limit     int
	UserAgent string
	Timeout   time.Duration
}

// Feed implements collector.Feed.
type Feed struct {
	cfg           Config
	channel       string
	baseCollector *colly.Collector
	media         Downloader
	logger        *zap.Logger
}

// New validates cfg and returns a Feed. media may be nil when photos are not needed.
func New(cfg Config, media Downloader, logger *zap.Logger) (*Feed, error) {
	channel := ChannelName(cfg.Channel)
	if channel == "" {
		return nil, errors.New("telegram channel is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://t.me"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)

	return &Feed{
		cfg:           cfg,
		channel:       channel,
		baseCollector: c,
		media:         media,
		logger:        logger.Named("telegram").With(zap.String("channel", channel)),
	}, nil
}

// ChannelName accepts "name", "@name", "t.me/name" or a full URL and returns the bare name.
func ChannelName(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "t.me/")
	s = strings.TrimPrefix(s, "s/")
	s = strings.TrimPrefix(s, "@")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

// Messages returns up to Limit of the most recent messages, newest first.
func (f *Feed) Messages(ctx context.Context) ([]collector.Message, error) {
	var (
		out    []collector.Message
		seen   = make(map[int64]struct{})
		before int64
	)
	for len(out) < f.cfg.Limit {
		page, err := f.fetchPage(ctx, before)
		if err != nil {
			if len(out) > 0 {
				f.logger.Warn("stopping pagination early", zap.Int("messages", len(out)), zap.Error(err))
				break
			}
			return nil, err
		}
		slices.SortFunc(page, func(a, b collector.Message) int {
			switch {
			case a.ID > b.ID:
				return -1
			case a.ID < b.ID:
				return 1
			}
			return 0
		})

		added := 0
		for _, m := range page {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
			added++
			if len(out) == f.cfg.Limit {
				break
			}
		}
		if added == 0 {
			break
		}
		before = page[len(page)-1].ID
		if before <= 1 {
			break
		}
	}
	f.logger.Info("channel page read", zap.Int("messages", len(out)))
	return out, nil
}

// DownloadMedia fetches the message photo.
func (f *Feed) DownloadMedia(ctx context.Context, msg collector.Message) ([]byte, error) {
	if !msg.HasPhoto || msg.PhotoURL == "" || f.media == nil {
		return nil, collector.ErrNoMedia
	}
	data, err := f.media.Download(ctx, msg.PhotoURL)
	if err != nil {
		return nil, fmt.Errorf("message %d photo: %w", msg.ID, err)
	}
	return data, nil
}

func (f *Feed) pageURL(before int64) string {
	u := fmt.Sprintf("%s/s/%s", f.cfg.BaseURL, url.PathEscape(f.channel))
	if before > 0 {
		u += fmt.Sprintf("?before=%d", before)
	}
	return u
}

func (f *Feed) fetchPage(ctx context.Context, before int64) ([]collector.Message, error) {
	var (
		page     []collector.Message
		fetchErr error
	)
	c := f.baseCollector.Clone()
	c.OnHTML(messageSelector, func(e *colly.HTMLElement) {
		msg, err := parseMessage(e.DOM)
		if err != nil {
			f.logger.Debug("skip unparsable message", zap.String("post", e.Attr("data-post")), zap.Error(err))
			return
		}
		page = append(page, msg)
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	target := f.pageURL(before)
	if err := runCollector(ctx, c, target, &fetchErr); err != nil {
		return nil, err
	}
	f.logger.Debug("channel page fetched", zap.String("url", target), zap.Int("messages", len(page)))
	return page, nil
}

func runCollector(ctx context.Context, c *colly.Collector, target string, fetchErr *error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("channel fetch canceled: %w", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- c.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("channel fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", target, err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("fetch %s: %w", target, *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
}
