package collector

import "time"

// PageStatus is the outcome tag of a single resolution attempt.
type PageStatus string

// Resolution outcomes.
const (
	PageStatusOK      PageStatus = "ok"
	PageStatusCaptcha PageStatus = "captcha"
	PageStatusError   PageStatus = "error"
)

// EntityKind distinguishes the two link entity shapes a feed can expose.
type EntityKind int

// Link entity kinds.
const (
	// EntityURL points into the message text by UTF-16 offset and length.
	EntityURL EntityKind = iota
	// EntityTextURL carries the target URL directly (hidden/formatted links).
	EntityTextURL
)

// Entity is a structured link attached to a message.
type Entity struct {
	Kind   EntityKind
	Offset int
	Length int
	URL    string
}

// Message is one item of the feed. The pipeline only reads these fields.
type Message struct {
	ID       int64
	Text     string
	Entities []Entity
	HasPhoto bool
	Views    int
	// PhotoURL is feed specific and only meaningful to the feed that produced it.
	PhotoURL string
	PostedAt time.Time
}

// CandidateLink is a URL extracted from a message that may reference the target marketplace.
type CandidateLink struct {
	// Raw is the link as posted.
	Raw string
	// URL is Raw made absolute; it is the address that gets resolved.
	URL string
	// Key is the normalized form used to collapse duplicates.
	Key         string
	DomainMatch bool
}

// Engine names a browser family a profile emulates.
type Engine string

// Supported engines. Both are Chromium based so the same driver can honour them.
const (
	EngineChrome Engine = "chrome"
	EngineEdge   Engine = "edge"
)

// Viewport is the window size a session is opened with.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ProxyConfig is the upstream proxy every browsing session must use.
type ProxyConfig struct {
	Server   string `mapstructure:"server"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// BrowsingProfile is the fingerprint of one resolution attempt. It is generated
// fresh per attempt and never reused across URLs.
type BrowsingProfile struct {
	Engine    Engine
	UserAgent string
	Viewport  Viewport
	Locales   []string
	Proxy     ProxyConfig
}

// ResolvedPage is the tagged result of a resolution attempt. Either HTML and
// FinalURL are both populated (ok) or only Status (and Err for errors) is set.
type ResolvedPage struct {
	Status   PageStatus
	HTML     string
	FinalURL string
	Err      error
}

// OKPage builds a successful resolution.
func OKPage(html, finalURL string) ResolvedPage {
	return ResolvedPage{Status: PageStatusOK, HTML: html, FinalURL: finalURL}
}

// CaptchaPage builds a captcha resolution.
func CaptchaPage() ResolvedPage {
	return ResolvedPage{Status: PageStatusCaptcha, Err: ErrCaptchaDetected}
}

// ErrorPage builds a failed resolution carrying the reason.
func ErrorPage(err error) ResolvedPage {
	return ResolvedPage{Status: PageStatusError, Err: err}
}

// CategoryResult is the outcome of classification. An empty label is a valid
// terminal value meaning the page is unclassified.
type CategoryResult struct {
	Label string
	URL   string
}

// Found reports whether a category label was recovered.
func (c CategoryResult) Found() bool {
	return c.Label != ""
}

// MediaAsset is raw media plus its content identity. Identical bytes always map
// to the same Path.
type MediaAsset struct {
	Data   []byte
	Digest string
	Path   string
}

// MediaReference is what the ingestor hands back for an asset.
type MediaReference struct {
	URL      string
	Digest   string
	Path     string
	Uploaded bool
}

// IngestRecord is the durable output produced for one qualifying message.
type IngestRecord struct {
	ID             int64     `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Text           string    `json:"text"`
	Views          int       `json:"views"`
	OriginItemURL  string    `json:"origin_item_url"`
	BucketImageURL *string   `json:"bucket_image_url"`
	Price          string    `json:"price"`
	Category       *string   `json:"category"`
	ImageID        string    `json:"-"`
}

// Row flattens the record into the column set written to record stores.
func (r IngestRecord) Row() map[string]any {
	row := map[string]any{
		"id":               r.ID,
		"created_at":       r.CreatedAt.UTC().Format(time.RFC3339),
		"text":             r.Text,
		"views":            r.Views,
		"origin_item_url":  r.OriginItemURL,
		"bucket_image_url": nil,
		"image_id":         nil,
		"price":            r.Price,
		"category":         nil,
	}
	if r.BucketImageURL != nil {
		row["bucket_image_url"] = *r.BucketImageURL
	}
	if r.ImageID != "" {
		row["image_id"] = r.ImageID
	}
	if r.Category != nil {
		row["category"] = *r.Category
	}
	return row
}
