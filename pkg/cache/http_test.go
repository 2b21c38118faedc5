package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestResponseToEntry(t *testing.T) {
	lastModified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	expires := time.Now().Add(time.Hour).UTC()

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Etag":          {`"abc"`},
			"Expires":       {expires.Format(http.TimeFormat)},
			"Last-Modified": {lastModified.Format(http.TimeFormat)},
			"X-Pages":       {"4"},
		},
		Body: io.NopCloser(bytes.NewReader([]byte(`[1,2,3]`))),
	}

	entry, err := ResponseToEntry(resp)
	if err != nil {
		t.Fatalf("ResponseToEntry() error = %v", err)
	}

	if string(entry.Body) != `[1,2,3]` {
		t.Errorf("Body = %s, want [1,2,3]", entry.Body)
	}
	if entry.ETag != `"abc"` {
		t.Errorf("ETag = %q, want \"abc\"", entry.ETag)
	}
	if !entry.LastModified.Equal(lastModified) {
		t.Errorf("LastModified = %v, want %v", entry.LastModified, lastModified)
	}
	if d := entry.Expires.Sub(expires); d < -time.Second || d > time.Second {
		t.Errorf("Expires = %v, want %v", entry.Expires, expires)
	}
	if entry.Headers.Get("X-Pages") != "4" {
		t.Error("headers not copied")
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `[1,2,3]` {
		t.Errorf("response body not restored, got %q", body)
	}
}

func TestResponseToEntry_Nil(t *testing.T) {
	if _, err := ResponseToEntry(nil); err == nil {
		t.Error("ResponseToEntry(nil) should fail")
	}
}

func TestExpiresFrom(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		header string
		want   time.Time
	}{
		{name: "missing", header: "", want: now.Add(DefaultTTL)},
		{name: "malformed", header: "tomorrow", want: now.Add(DefaultTTL)},
		{name: "past", header: now.Add(-time.Hour).UTC().Format(http.TimeFormat), want: now},
		{name: "future", header: now.Add(time.Hour).UTC().Format(http.TimeFormat), want: now.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Expires", tt.header)
			}
			got := expiresFrom(h, now)
			if d := got.Sub(tt.want); d < -time.Second || d > time.Second {
				t.Errorf("expiresFrom() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntryToResponse(t *testing.T) {
	entry := &Entry{
		Body:       []byte(`["a"]`),
		StatusCode: http.StatusOK,
		Headers:    http.Header{"X-Total-Count": {"1"}},
	}

	resp := EntryToResponse(entry)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Total-Count") != "1" {
		t.Error("headers not restored")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `["a"]` {
		t.Errorf("body = %q", body)
	}

	resp.Header.Set("X-Total-Count", "2")
	if entry.Headers.Get("X-Total-Count") != "1" {
		t.Error("response headers alias the cached entry")
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	lastModified := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		entry      *Entry
		wantHeader string
		wantValue  string
	}{
		{
			name:       "etag",
			entry:      &Entry{ETag: `"abc"`},
			wantHeader: "If-None-Match",
			wantValue:  `"abc"`,
		},
		{
			name:       "last modified",
			entry:      &Entry{LastModified: lastModified},
			wantHeader: "If-Modified-Since",
			wantValue:  "Sun, 01 Jan 2023 12:00:00 GMT",
		},
		{
			name:       "etag preferred",
			entry:      &Entry{ETag: `"abc"`, LastModified: lastModified},
			wantHeader: "If-None-Match",
			wantValue:  `"abc"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "http://example.com/v1/orders", nil)
			AddConditionalHeaders(req, tt.entry)
			if got := req.Header.Get(tt.wantHeader); got != tt.wantValue {
				t.Errorf("%s = %q, want %q", tt.wantHeader, got, tt.wantValue)
			}
		})
	}

	// Nil inputs are ignored.
	AddConditionalHeaders(nil, &Entry{ETag: "x"})
	AddConditionalHeaders(&http.Request{}, nil)
}
