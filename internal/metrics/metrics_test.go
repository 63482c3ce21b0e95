package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://www.Amazon.com/dp/B0", "www.amazon.com"},
		{"short link", "https://amzn.to/3xyz", "amzn.to"},
		{"no scheme", "amazon.com/dp/B0", "amazon.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserversInitialiseLazily(t *testing.T) {
	ObserveResolution("https://amzn.to/abc", "captcha")
	ObserveResolution("https://amzn.to/def", "captcha")
	ObserveIngest("dedup")
	ObserveMessage("skipped")
	ObserveRecord()
	ObserveStoreWriteFailure("telegram_messages")
	ObserveRateLimitDelay("amzn.to", 2*time.Second)

	if val := testutil.ToFloat64(resolutionsTotal.WithLabelValues("amzn.to", "captcha")); val != 2 {
		t.Errorf("expected 2 captcha resolutions, got %f", val)
	}
	if val := testutil.ToFloat64(ingestTotal.WithLabelValues("dedup")); val < 1 {
		t.Errorf("expected dedup ingest to be counted, got %f", val)
	}
	if val := testutil.ToFloat64(storeWriteFailuresTotal.WithLabelValues("telegram_messages")); val < 1 {
		t.Errorf("expected store failure to be counted, got %f", val)
	}
	if val := testutil.CollectAndCount(rateLimitDelaysSeconds); val <= 0 {
		t.Errorf("expected rate limit delay to be observed, got %d", val)
	}
}

func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"https://amazon.com", "amzn.to/x", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
