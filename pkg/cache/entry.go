package cache

import (
	"net/http"
	"time"
)

// Entry is a cached API response.
type Entry struct {
	Body         []byte      `json:"body"`
	StatusCode   int         `json:"status_code"`
	Headers      http.Header `json:"headers"`
	ETag         string      `json:"etag,omitempty"`
	LastModified time.Time   `json:"last_modified,omitempty"`
	Expires      time.Time   `json:"expires"`
	CachedAt     time.Time   `json:"cached_at"`
}

// IsExpired reports whether the entry is past its Expires time.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the remaining lifetime, never negative.
func (e *Entry) TTL() time.Duration {
	if ttl := time.Until(e.Expires); ttl > 0 {
		return ttl
	}
	return 0
}

// CanRevalidate reports whether a conditional request can be made for e.
func (e *Entry) CanRevalidate() bool {
	return e != nil && (e.ETag != "" || !e.LastModified.IsZero())
}
