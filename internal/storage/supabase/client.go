// Package supabase stores records and media in a Supabase project.
package supabase

import (
	"fmt"
	"strings"

	supabase "github.com/supabase-community/supabase-go"
)

// Config holds the project endpoint and the service key.
type Config struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

// NewClient builds a Supabase SDK client. The service role key is expected
// since inserts and uploads run server-side.
func NewClient(cfg Config) (*supabase.Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("supabase.url is required")
	}
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, fmt.Errorf("supabase.key is required")
	}
	client, err := supabase.NewClient(strings.TrimRight(cfg.URL, "/"), cfg.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase SDK: %w", err)
	}
	return client, nil
}
