package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/trends-scraper/internal/trends"
)

const volumeSuffix = "searches"

// cleanText returns the selection's text with whitespace runs collapsed.
func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// withVolumeSuffix appends the unit to numeric volume text that lacks it.
func withVolumeSuffix(volume string) string {
	if volume == "" || strings.HasSuffix(volume, volumeSuffix) {
		return volume
	}
	if strings.IndexFunc(volume, unicode.IsDigit) < 0 {
		return volume
	}
	return volume + " " + volumeSuffix
}

// absolutize rewrites site-relative hrefs against the source domain.
func absolutize(href string) string {
	if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
		return trends.SourceDomain + href
	}
	return href
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return trends.StringPtr(s)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func truncate(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
