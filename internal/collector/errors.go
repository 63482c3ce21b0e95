package collector

import "errors"

// Error taxonomy. A missing category is not an error and has no sentinel.
var (
	// ErrSession means a browsing session could not be opened (proxy or engine launch failure).
	ErrSession = errors.New("browsing session unavailable")
	// ErrNavigation means the page did not load within its bound.
	ErrNavigation = errors.New("navigation failed")
	// ErrCaptchaDetected is terminal for a candidate and never retried.
	ErrCaptchaDetected = errors.New("captcha detected")
	// ErrIngest means media could not be stored; the record proceeds without media.
	ErrIngest = errors.New("media ingest failed")
	// ErrStoreWrite means a record insert failed; the record is still exported.
	ErrStoreWrite = errors.New("record store write failed")
	// ErrNoMedia is returned when there are no bytes to ingest.
	ErrNoMedia = errors.New("no media")
)
