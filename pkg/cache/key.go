package cache

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// KeyPrefix namespaces all cache keys in Redis.
const KeyPrefix = "pagedlist"

// Key identifies one page of one endpoint query.
type Key struct {
	// Endpoint is the API path, e.g. "/v1/orders/".
	Endpoint string

	// Query holds query parameters other than the page number.
	Query url.Values

	// Page is the 1-based remote page number; 0 for unpaginated requests.
	Page int
}

// String renders a deterministic Redis key:
//
//	pagedlist:v1/orders:status=open:page=3
//
// Query parameters are sorted by name; multi-valued parameters keep their
// order and are joined with commas. A "page" query parameter is ignored in
// favour of the Page field.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(KeyPrefix)

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		b.WriteByte(':')
		b.WriteString(endpoint)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		if name == "page" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(k.Query[name], ","))
	}

	if k.Page > 0 {
		b.WriteString(":page=")
		b.WriteString(strconv.Itoa(k.Page))
	}

	return b.String()
}
