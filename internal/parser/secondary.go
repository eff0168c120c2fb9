package parser

import (
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/trends"
)

// legacyTitleSelector matches title-only nodes of an older table layout.
const legacyTitleSelector = "td.jvkLtd div.mZ3RIc"

// secondarySelectors are tried in order; the first one that matches and
// yields topics wins.
var secondarySelectors = []string{
	legacyTitleSelector,
	"div[jsname='oKdM2c']",
	".trending-story",
	".trending-topic",
	"article",
	"[data-entity-type='trending_story']",
	".trending-queries-table tr",
	".trending-searches-content div",
	".feed-item",
	".trending-story-title",
}

var (
	titleSubSelectors = []string{".mZ3RIc", "h3", "h2", ".title", "[data-entity-name]", "a"}
	volumeSubSelector = ".search-volume, .volume, [data-volume]"
	changeSubSelector = ".change, .percentage, [data-change]"
)

func (p *Parser) secondary(doc *goquery.Document) []trends.Topic {
	if body := cleanText(doc.Find("body")); runeLen(body) < 1000 {
		p.logger.Debug("document text is very small, page was likely not rendered",
			zap.String("preview", truncate(body, 200)),
		)
	}
	for _, selector := range secondarySelectors {
		elements := doc.Find(selector)
		if elements.Length() == 0 {
			continue
		}
		var topics []trends.Topic
		if selector == legacyTitleSelector {
			topics = titlesOnly(elements)
		} else {
			topics = genericTopics(elements)
		}
		if len(topics) > 0 {
			p.logger.Debug("secondary selector matched",
				zap.String("selector", selector),
				zap.Int("elements", elements.Length()),
				zap.Int("topics", len(topics)),
			)
			return topics
		}
	}
	return nil
}

func titlesOnly(nodes *goquery.Selection) []trends.Topic {
	var topics []trends.Topic
	nodes.Each(func(_ int, node *goquery.Selection) {
		title := cleanText(node)
		if runeLen(title) < 3 {
			return
		}
		topics = append(topics, trends.Topic{Title: title, Ranking: trends.IntPtr(len(topics) + 1)})
	})
	return topics
}

func genericTopics(elements *goquery.Selection) []trends.Topic {
	var topics []trends.Topic
	elements.Each(func(_ int, el *goquery.Selection) {
		topic := topicFromElement(el)
		if runeLen(topic.Title) <= 2 {
			return
		}
		topic.Ranking = trends.IntPtr(len(topics) + 1)
		topics = append(topics, topic)
	})
	return topics
}

func topicFromElement(el *goquery.Selection) trends.Topic {
	var topic trends.Topic
	for _, sel := range titleSubSelectors {
		if node := el.Find(sel).First(); node.Length() > 0 {
			topic.Title = cleanText(node)
			break
		}
	}
	if topic.Title == "" {
		topic.Title = cleanText(el)
	}
	if node := el.Find(volumeSubSelector).First(); node.Length() > 0 {
		topic.SearchVolume = optional(withVolumeSuffix(cleanText(node)))
	}
	if node := el.Find(changeSubSelector).First(); node.Length() > 0 {
		topic.ChangePercentage = optional(cleanText(node))
	}
	if href, ok := el.Find("a[href]").First().Attr("href"); ok && href != "" {
		topic.URL = trends.StringPtr(absolutize(href))
	}
	return topic
}
