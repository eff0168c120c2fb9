// Package parser extracts ranked topics from trending-page HTML using an
// ordered chain of selector strategies followed by free-text salvage.
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/metrics"
	"github.com/JakeFAU/trends-scraper/internal/trends"
)

// Extraction mode names, also used as metric labels.
const (
	ModePrimary   = "primary"
	ModeSecondary = "secondary"
	ModeSalvage   = "salvage"
	ModeNone      = "none"
)

// strategy is one tier of the extraction chain.
type strategy struct {
	name string
	run  func(doc *goquery.Document) []trends.Topic
}

// Parser implements trends.Extractor.
type Parser struct {
	logger *zap.Logger
	chain  []strategy
}

// New returns a Parser with the primary, secondary and salvage tiers.
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Parser{logger: logger}
	p.chain = []strategy{
		{name: ModePrimary, run: p.primary},
		{name: ModeSecondary, run: p.secondary},
		{name: ModeSalvage, run: salvage},
	}
	return p
}

// Extract runs the full strategy chain and returns the first non-empty result.
// It never fails; an unparseable or empty document yields an empty slice.
func (p *Parser) Extract(html string) []trends.Topic {
	doc, ok := p.parse(html)
	if !ok {
		return []trends.Topic{}
	}
	for _, s := range p.chain {
		topics := p.runStrategy(s, doc)
		if len(topics) > 0 {
			p.logger.Info("extracted topics",
				zap.String("mode", s.name),
				zap.Int("count", len(topics)),
			)
			metrics.ObserveExtraction(s.name)
			return topics
		}
	}
	p.logger.Info("no topics extracted", zap.Int("html_bytes", len(html)))
	metrics.ObserveExtraction(ModeNone)
	return []trends.Topic{}
}

// ExtractPrimary runs only the table-row tier.
func (p *Parser) ExtractPrimary(html string) []trends.Topic {
	doc, ok := p.parse(html)
	if !ok {
		return []trends.Topic{}
	}
	topics := p.runStrategy(p.chain[0], doc)
	if len(topics) == 0 {
		metrics.ObserveExtraction(ModeNone)
		return []trends.Topic{}
	}
	metrics.ObserveExtraction(ModePrimary)
	return topics
}

// HasTableMarkers reports whether html carries both the trends table class
// and the row marker attribute.
func (p *Parser) HasTableMarkers(html string) bool {
	doc, ok := p.parse(html)
	if !ok {
		return false
	}
	return doc.Find(tableSelector).Length() > 0 && doc.Find(rowMarkerSelector).Length() > 0
}

func (p *Parser) parse(html string) (*goquery.Document, bool) {
	if strings.TrimSpace(html) == "" {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.logger.Warn("failed to parse HTML", zap.Error(err))
		return nil, false
	}
	return doc, true
}

func (p *Parser) runStrategy(s strategy, doc *goquery.Document) (topics []trends.Topic) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("extraction strategy panicked",
				zap.String("mode", s.name),
				zap.Any("panic", rec),
			)
			topics = nil
		}
	}()
	return s.run(doc)
}
