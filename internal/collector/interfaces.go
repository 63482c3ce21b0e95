package collector

import (
	"context"
	"time"
)

// Feed yields a bounded, ordered page of messages and can fetch their media.
type Feed interface {
	Messages(ctx context.Context) ([]Message, error)
	DownloadMedia(ctx context.Context, msg Message) ([]byte, error)
}

// RecordStore persists IngestRecords. Writes are insert-only.
type RecordStore interface {
	InsertRecord(ctx context.Context, table string, record IngestRecord) error
}

// ObjectStore is the blob side of the durable store.
type ObjectStore interface {
	// List returns object names directly under namespace, relative to it.
	List(ctx context.Context, namespace string) ([]string, error)
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	PublicURL(path string) string
}

// Publisher pushes record notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests for deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Box is the on-screen rectangle of a located element.
type Box struct {
	X, Y, Width, Height float64
}

// Center returns the midpoint of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Locator identifies an element by CSS selector and, optionally, exact trimmed text.
type Locator struct {
	Selector string
	Text     string
}

// Page is an open browser tab the resolver and humanization engine drive.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, expression string, out any) error
	MouseMove(ctx context.Context, x, y float64) error
	Click(ctx context.Context, x, y float64) error
	PressKey(ctx context.Context, key string) error
	// Locate returns the first visible element matching loc.
	Locate(ctx context.Context, loc Locator) (Box, bool, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Location(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
}

// Session is one isolated browsing context. No two sessions share state.
type Session interface {
	Page() Page
	Close()
}

// SessionFactory builds profiles and opens sessions for them.
type SessionFactory interface {
	CreateProfile() BrowsingProfile
	OpenSession(ctx context.Context, profile BrowsingProfile) (Session, error)
}

// PageResolver fetches a URL through a humanized session.
type PageResolver interface {
	Resolve(ctx context.Context, url string) ResolvedPage
}

// CategoryExtractor recovers a category label from page HTML.
type CategoryExtractor interface {
	ExtractCategory(html, baseURL string) CategoryResult
}

// MediaIngestor stores media bytes at most once and returns a stable reference.
type MediaIngestor interface {
	Ingest(ctx context.Context, raw []byte) (MediaReference, error)
}
