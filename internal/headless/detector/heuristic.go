// Package detector recognizes raw responses that are client-rendered shells
// with no server-side content.
package detector

import (
	"bytes"
	"net/http"
)

const (
	defaultSmallBody     = 2048
	scriptDensityPercent = 25
)

// Heuristic flags unrendered pages using size, script density and framework
// bootstrap markers.
type Heuristic struct {
	SmallBodyBytes int
}

// NewHeuristic creates a detector; threshold <= 0 selects the default.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = defaultSmallBody
	}
	return &Heuristic{SmallBodyBytes: threshold}
}

var shellMarkers = [][]byte{
	[]byte("AF_initDataCallback"),
	[]byte("WIZ_global_data"),
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("enable javascript"),
}

// LooksUnrendered reports whether a successful response appears to need a
// browser to produce its content. Non-200 responses are never flagged.
func (h *Heuristic) LooksUnrendered(statusCode int, body []byte) bool {
	if statusCode != http.StatusOK {
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	if len(body) < h.SmallBodyBytes && scriptCoverage(lower)*100 >= scriptDensityPercent*len(lower) {
		return true
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(lower, bytes.ToLower(marker)) {
			return true
		}
	}
	return false
}

// scriptCoverage counts the bytes of lower that sit inside script elements,
// tags included. An unterminated element runs to the end of the document.
func scriptCoverage(lower []byte) int {
	var (
		open    = []byte("<script")
		closing = []byte("</script>")
		covered int
		rest    = lower
	)
	for {
		start := bytes.Index(rest, open)
		if start < 0 {
			return covered
		}
		end := bytes.Index(rest[start:], closing)
		if end < 0 {
			return covered + len(rest) - start
		}
		end += start + len(closing)
		covered += end - start
		rest = rest[end:]
	}
}
