package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/trends"
)

// Fingerprints of the current "trending now" table markup.
const (
	tableSelector     = "table.enOdEe-wZVHld-zg7Cn"
	rowMarkerSelector = "[jsname='oKdM2c']"
	rowSelector       = "tr[jsname='oKdM2c']"

	titleCellSelector     = "td.jvkLtd div.mZ3RIc"
	volumeCellSelector    = "td.dQOTjf div.lqv0Cb"
	changeCellSelector    = "td.dQOTjf div.wqrjjc div.TXt85b"
	breakdownCellSelector = "td.xm9Xec"

	sourceHost = "trends.google.com"
)

func (p *Parser) primary(doc *goquery.Document) []trends.Topic {
	if doc.Find(tableSelector).Length() == 0 && doc.Find(rowMarkerSelector).Length() == 0 {
		return nil
	}
	rows := doc.Find(rowSelector)
	if rows.Length() == 0 {
		p.logger.Warn("table structure detected but no trend rows found")
		return nil
	}
	p.logger.Debug("found trend rows", zap.Int("rows", rows.Length()))

	topics := make([]trends.Topic, 0, rows.Length())
	rows.Each(func(i int, row *goquery.Selection) {
		topic, ok := topicFromRow(row, len(topics)+1)
		if !ok {
			p.logger.Debug("dropping row without title", zap.Int("row", i+1))
			return
		}
		topics = append(topics, topic)
	})
	return topics
}

func topicFromRow(row *goquery.Selection, rank int) (trends.Topic, bool) {
	title := cleanText(row.Find(titleCellSelector).First())
	if title == "" {
		return trends.Topic{}, false
	}
	topic := trends.Topic{
		Title:   title,
		Ranking: trends.IntPtr(rank),
	}
	if volume := row.Find(volumeCellSelector).First(); volume.Length() > 0 {
		topic.SearchVolume = optional(withVolumeSuffix(cleanText(volume)))
	}
	if change := row.Find(changeCellSelector).First(); change.Length() > 0 {
		topic.ChangePercentage = optional(cleanText(change))
	}
	topic.URL = sourceLink(row)
	topic.RelatedQueries = relatedQueries(row.Find(breakdownCellSelector).First(), title)
	return topic, true
}

// sourceLink returns the first anchor pointing at the source domain, with
// site-relative hrefs made absolute.
func sourceLink(row *goquery.Selection) *string {
	base, _ := url.Parse(trends.SourceDomain)
	var link *string
	row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		switch {
		case ref.Host == "" && strings.HasPrefix(href, "/"):
			link = trends.StringPtr(base.ResolveReference(ref).String())
			return false
		case strings.EqualFold(ref.Hostname(), sourceHost):
			resolved := base.ResolveReference(ref)
			link = trends.StringPtr(resolved.String())
			return false
		default:
			return true
		}
	})
	return link
}

// relatedQueries prefers the literal data-term attribute of breakdown buttons
// and falls back to button text.
func relatedQueries(cell *goquery.Selection, title string) []string {
	if cell.Length() == 0 {
		return nil
	}
	var out []string
	seen := map[string]struct{}{}
	add := func(term string) {
		if term == "" || term == title {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	cell.Find("button[data-term]").Each(func(_ int, b *goquery.Selection) {
		add(strings.TrimSpace(b.AttrOr("data-term", "")))
	})
	if len(out) > 0 {
		return out
	}
	cell.Find("button").Each(func(_ int, b *goquery.Selection) {
		if term := cleanText(b); runeLen(term) > 2 {
			add(term)
		}
	})
	return out
}
