package parser

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/trends-scraper/internal/trends"
)

const (
	salvageMinLen = 3
	salvageMaxLen = 100
	salvageLimit  = 20
	shoutMaxLen   = 10
)

var (
	// skipPrefixes match case-sensitively, so "Google Pixel" survives while
	// "google.com" does not.
	skipPrefixes = []string{"http", "www", "google", "search", "trend"}

	stopWords = map[string]struct{}{
		"search": {}, "trending": {}, "more": {}, "news": {}, "google": {},
		"trends": {}, "privacy": {}, "terms": {}, "help": {}, "settings": {},
	}

	codeTokens   = []string{"()", "{}", "[]", "=", ";", "<", ">", "function", "var ", "const "}
	scriptTokens = []string{"onload", "gtag", "function", "script", "css", "javascript"}

	skippedElements = map[string]struct{}{"script": {}, "style": {}, "noscript": {}, "template": {}}
)

// salvage keeps text nodes that plausibly name a topic.
func salvage(doc *goquery.Document) []trends.Topic {
	var (
		topics []trends.Topic
		seen   = map[string]struct{}{}
	)
	for _, text := range textNodes(doc) {
		if len(topics) >= salvageLimit {
			break
		}
		if !plausibleTopic(text) {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		topics = append(topics, trends.Topic{Title: text, Ranking: trends.IntPtr(len(topics) + 1)})
	}
	return topics
}

func textNodes(doc *goquery.Document) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skippedElements[n.Data]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				out = append(out, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return out
}

func plausibleTopic(text string) bool {
	n := runeLen(text)
	if n <= salvageMinLen || n >= salvageMaxLen {
		return false
	}
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(text, prefix) {
			return false
		}
	}
	if isDigits(text) {
		return false
	}
	lower := strings.ToLower(text)
	if _, stop := stopWords[lower]; stop {
		return false
	}
	if containsAny(text, codeTokens) {
		return false
	}
	if n < shoutMaxLen && isUpper(text) {
		return false
	}
	return !containsAny(lower, scriptTokens)
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// isUpper reports whether s has at least one cased letter and no lower-case ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
