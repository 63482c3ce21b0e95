// Package media downloads message attachments over HTTP.
package media

import (
	"context"
	"fmt"
	"io"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

// Config controls the downloader.
type Config struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	// MaxBytes rejects larger bodies; 0 means 20 MiB.
	MaxBytes int
}

// Downloader fetches media bytes.
type Downloader struct {
	client   *resty.Client
	maxBytes int
	logger   *zap.Logger
}

// New builds a Downloader on a resty client with a browser-like TLS fingerprint.
func New(cfg Config, logger *zap.Logger) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", cfg.UserAgent)
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(max(cfg.Retries, 0))
	client.SetRetryWaitTime(500 * time.Millisecond)

	return &Downloader{client: client, maxBytes: cfg.MaxBytes, logger: logger}
}

// Download returns the body at url. Bodies over the configured limit are
// rejected without being read past it.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, collector.ErrNoMedia
	}
	start := time.Now()
	resp, err := d.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	raw := resp.RawBody()
	defer func() {
		if raw != nil {
			_ = raw.Close()
		}
	}()
	if resp.IsError() {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode())
	}
	if resp.RawResponse != nil && resp.RawResponse.ContentLength > int64(d.maxBytes) {
		return nil, fmt.Errorf("download %s: %d bytes exceeds limit %d", url, resp.RawResponse.ContentLength, d.maxBytes)
	}
	if raw == nil {
		return nil, fmt.Errorf("download %s: %w", url, collector.ErrNoMedia)
	}
	body, err := io.ReadAll(io.LimitReader(raw, int64(d.maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: read body: %w", url, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("download %s: %w", url, collector.ErrNoMedia)
	}
	if len(body) > d.maxBytes {
		return nil, fmt.Errorf("download %s: body exceeds limit %d", url, d.maxBytes)
	}
	d.logger.Debug("media downloaded",
		zap.String("url", url),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)
	return body, nil
}
