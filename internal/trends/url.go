package trends

import (
	"net/http"
	"net/url"
	"strconv"
)

// Upstream endpoints.
const (
	DefaultBaseURL = "https://trends.google.com/trending"
	DefaultFeedURL = "https://trends.google.com/trends/trendingsearches/daily/rss"
	SourceDomain   = "https://trends.google.com"
)

// BrowserUserAgent impersonates a desktop Chrome on macOS.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BuildURL constructs the acquisition URL for q against DefaultBaseURL.
func BuildURL(q Query) string {
	return BuildURLWithBase(DefaultBaseURL, q)
}

// BuildURLWithBase constructs the acquisition URL for q. An override URL is
// returned verbatim; otherwise unset fields are omitted from the query string.
func BuildURLWithBase(base string, q Query) string {
	if q.URL != nil && *q.URL != "" {
		return *q.URL
	}
	values := url.Values{}
	setIfPresent(values, "geo", q.Geo)
	setIfPresent(values, "hl", q.Language)
	if q.Hours != nil {
		values.Set("hours", strconv.Itoa(*q.Hours))
	}
	setPtrIfPresent(values, "category", q.Category)
	setPtrIfPresent(values, "sort", q.Sort)
	setPtrIfPresent(values, "status", q.Status)

	encoded := values.Encode()
	if encoded == "" {
		return base
	}
	return base + "?" + encoded
}

// BuildFeedURL scopes the alternate feed by location and language.
func BuildFeedURL(base, geo, language string) string {
	values := url.Values{}
	setIfPresent(values, "geo", geo)
	setIfPresent(values, "hl", language)
	encoded := values.Encode()
	if encoded == "" {
		return base
	}
	return base + "?" + encoded
}

// BrowserHeaders returns the header set sent with raw fetches. Accept-Encoding
// is left to the transport so compressed bodies are decoded transparently.
func BrowserHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", BrowserUserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,"+
		"image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Cache-Control", "max-age=0")
	return h
}

func setIfPresent(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

func setPtrIfPresent(values url.Values, key string, value *string) {
	if value != nil && *value != "" {
		values.Set(key, *value)
	}
}
