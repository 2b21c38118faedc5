package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTTL applies to responses without a usable Expires header.
const DefaultTTL = 5 * time.Minute

// ResponseToEntry reads resp into an Entry. The body is replaced with an
// in-memory copy so the caller can still consume it.
func ResponseToEntry(resp *http.Response) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	now := time.Now()
	entry := &Entry{
		Body:       body,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		ETag:       resp.Header.Get("ETag"),
		Expires:    expiresFrom(resp.Header, now),
		CachedAt:   now,
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			entry.LastModified = t
		}
	}

	return entry, nil
}

// EntryToResponse rebuilds an HTTP response from a cached entry.
func EntryToResponse(entry *Entry) *http.Response {
	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        entry.Headers.Clone(),
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
	}
}

// expiresFrom returns the Expires header time, now+DefaultTTL when the header
// is missing or malformed, and now when it lies in the past.
func expiresFrom(h http.Header, now time.Time) time.Time {
	raw := h.Get("Expires")
	if raw == "" {
		return now.Add(DefaultTTL)
	}
	t, err := http.ParseTime(raw)
	if err != nil {
		return now.Add(DefaultTTL)
	}
	if t.Before(now) {
		return now
	}
	return t
}

// AddConditionalHeaders sets If-None-Match, or If-Modified-Since when the
// entry has no ETag.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if req == nil || !entry.CanRevalidate() {
		return
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}
	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
		return
	}
	req.Header.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
}
