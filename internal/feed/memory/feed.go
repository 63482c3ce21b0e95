// Package memory provides a fixed in-memory feed for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

// Feed serves a fixed list of messages and their photos.
type Feed struct {
	mu       sync.RWMutex
	messages []collector.Message
	media    map[int64][]byte
}

// New returns an empty Feed.
func New() *Feed {
	return &Feed{media: make(map[int64][]byte)}
}

// Add appends msg with optional photo bytes.
func (f *Feed) Add(msg collector.Message, photo []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(photo) > 0 {
		msg.HasPhoto = true
		f.media[msg.ID] = slices.Clone(photo)
	}
	f.messages = append(f.messages, msg)
}

// Messages returns the messages in insertion order.
func (f *Feed) Messages(ctx context.Context) ([]collector.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory feed: %w", err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.messages), nil
}

// DownloadMedia returns the photo stored for msg.
func (f *Feed) DownloadMedia(_ context.Context, msg collector.Message) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, ok := f.media[msg.ID]
	if !ok {
		return nil, collector.ErrNoMedia
	}
	return slices.Clone(data), nil
}
