package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

func post(id int, text, extra string) string {
	return fmt.Sprintf(`
<div class="tgme_widget_message_wrap">
  <div class="tgme_widget_message text_not_supported_wrap js-widget_message" data-post="deals/%d">
    %s
    <div class="tgme_widget_message_text js-message_text" dir="auto">%s</div>
    <div class="tgme_widget_message_footer">
      <span class="tgme_widget_message_views">1.2K</span>
      <a class="tgme_widget_message_date" href="https://t.me/deals/%d"><time datetime="2026-10-15T18:04:05+00:00" class="time">18:04</time></a>
    </div>
  </div>
</div>`, id, extra, text, id)
}

func page(posts ...string) string {
	return `<html><body><section class="tgme_channel_history">` + strings.Join(posts, "") + `</section></body></html>`
}

func newServer(t *testing.T, pages map[string]string) (*httptest.Server, *[]string) {
	t.Helper()
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if b := r.URL.Query().Get("before"); b != "" {
			key += "?before=" + b
		}
		hits = append(hits, key)
		body, ok := pages[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestMessagesParsesPreview(t *testing.T) {
	t.Parallel()

	photo := `<a class="tgme_widget_message_photo_wrap" href="https://t.me/deals/7" style="width:800px;background-image:url('https://cdn.example/file/abc.jpg')"></a>`
	srv, _ := newServer(t, map[string]string{
		"/s/deals": page(
			post(7, `מבצע!<br/>Check <a href="https://amzn.to/xyz" target="_blank">https://amzn.to/xyz</a> and <a href="https://www.amazon.com/dp/B01">here</a> <a href="?q=%23deal">#deal</a>`, photo),
		),
		"/s/deals?before=7": page(),
	})

	feed, err := New(Config{Channel: "t.me/deals", BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)

	msgs, err := feed.Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, int64(7), m.ID)
	assert.Equal(t, "מבצע!\nCheck https://amzn.to/xyz and here #deal", m.Text)
	assert.Equal(t, 1200, m.Views)
	assert.True(t, m.HasPhoto)
	assert.Equal(t, "https://cdn.example/file/abc.jpg", m.PhotoURL)
	assert.Equal(t, time.Date(2026, 10, 15, 18, 4, 5, 0, time.UTC), m.PostedAt)
	assert.Equal(t, []collector.Entity{
		{Kind: collector.EntityTextURL, URL: "https://amzn.to/xyz"},
		{Kind: collector.EntityTextURL, URL: "https://www.amazon.com/dp/B01"},
	}, m.Entities)
}

func TestMessagesPaginatesNewestFirstUpToLimit(t *testing.T) {
	t.Parallel()

	srv, hits := newServer(t, map[string]string{
		"/s/deals":          page(post(3, "c", ""), post(4, "d", ""), post(5, "e", "")),
		"/s/deals?before=3": page(post(1, "a", ""), post(2, "b", "")),
	})

	feed, err := New(Config{Channel: "@deals", BaseURL: srv.URL + "/", Limit: 4}, nil, nil)
	require.NoError(t, err)

	msgs, err := feed.Messages(context.Background())
	require.NoError(t, err)

	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
		assert.False(t, m.HasPhoto)
	}
	assert.Equal(t, []int64{5, 4, 3, 2}, ids)
	assert.Equal(t, []string{"/s/deals", "/s/deals?before=3"}, *hits)
}

func TestMessagesStopsWhenHistoryEnds(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, map[string]string{
		"/s/deals":          page(post(8, "x", ""), post(9, "y", "")),
		"/s/deals?before=8": page(post(8, "dup", "")),
	})
	feed, err := New(Config{Channel: "deals", BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)

	msgs, err := feed.Messages(context.Background())
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestMessagesFirstPageError(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, map[string]string{})
	feed, err := New(Config{Channel: "deals", BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)

	_, err = feed.Messages(context.Background())
	require.Error(t, err)
}

func TestMessagesCanceled(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, map[string]string{"/s/deals": page()})
	feed, err := New(Config{Channel: "deals", BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = feed.Messages(ctx)
	require.Error(t, err)
}

type fakeDownloader struct {
	urls []string
	err  error
}

func (d *fakeDownloader) Download(_ context.Context, url string) ([]byte, error) {
	d.urls = append(d.urls, url)
	return []byte("img"), d.err
}

func TestDownloadMedia(t *testing.T) {
	t.Parallel()

	dl := &fakeDownloader{}
	feed, err := New(Config{Channel: "deals"}, dl, nil)
	require.NoError(t, err)

	data, err := feed.DownloadMedia(context.Background(), collector.Message{ID: 1, HasPhoto: true, PhotoURL: "https://cdn/x.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)
	assert.Equal(t, []string{"https://cdn/x.jpg"}, dl.urls)

	_, err = feed.DownloadMedia(context.Background(), collector.Message{ID: 2})
	require.ErrorIs(t, err, collector.ErrNoMedia)

	dl.err = errors.New("timeout")
	_, err = feed.DownloadMedia(context.Background(), collector.Message{ID: 3, HasPhoto: true, PhotoURL: "https://cdn/y.jpg"})
	require.Error(t, err)
}

func TestChannelName(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"haregakaniti":                    "haregakaniti",
		"@haregakaniti":                   "haregakaniti",
		"t.me/haregakaniti":               "haregakaniti",
		"https://t.me/s/haregakaniti?x=1": "haregakaniti",
		"  ":                              "",
	} {
		assert.Equal(t, want, ChannelName(in), in)
	}

	_, err := New(Config{}, nil, nil)
	require.Error(t, err)
}

func TestParseViews(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]int{
		"987":   987,
		"1.2K":  1200,
		"15k":   15000,
		"3.4M":  3400000,
		"1,234": 1234,
		"n/a":   0,
		"":      0,
	} {
		assert.Equal(t, want, ParseViews(in), in)
	}
}
