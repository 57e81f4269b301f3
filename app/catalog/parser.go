package catalog

import (
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// detailURLRe extracts the gateway callback argument from the metadata
// button's onclick handler.
var detailURLRe = regexp.MustCompile(`getGatewayedAction\('([^']+)'\)`)

// Parser turns the portal's HTML index page into catalog entries.
// The page is one table row per dataset; rows missing any required element
// are skipped individually, never aborting the whole parse.
type Parser struct {
	gatewayURL string
}

// NewParser creates a parser bound to the portal's gateway URL prefix
func NewParser(gatewayURL string) *Parser {
	return &Parser{gatewayURL: gatewayURL}
}

// Run parses a full index page and returns all well-formed entries
func (p *Parser) Run(r io.Reader) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index page: %w", err)
	}

	var entries []Entry
	doc.Find("tr").Each(func(i int, row *goquery.Selection) {
		entry, err := p.parseRow(row)
		if err != nil {
			slog.Debug("Skipping catalog row", "row", i, "error", err)
			return
		}
		entries = append(entries, *entry)
	})

	return entries, nil
}

func (p *Parser) parseRow(row *goquery.Selection) (*Entry, error) {
	headings := row.Find("h1")
	if headings.Length() == 0 {
		return nil, fmt.Errorf("missing title heading")
	}
	title := strings.ReplaceAll(strings.TrimSpace(headings.First().Text()), "\n", "")

	descriptions := row.Find("h2")
	if descriptions.Length() == 0 {
		return nil, fmt.Errorf("missing description heading")
	}
	description := strings.ReplaceAll(strings.TrimSpace(descriptions.First().Text()), "\n", "")

	links := row.Find(".button1")
	if links.Length() < 3 {
		return nil, fmt.Errorf("expected 3 action links, found %d", links.Length())
	}
	xmlURL := strings.TrimSpace(links.Eq(0).AttrOr("href", ""))
	zipURL := strings.TrimSpace(links.Eq(1).AttrOr("href", ""))
	rdfURL := strings.TrimSpace(links.Eq(2).AttrOr("href", ""))

	spans := row.Find("span")
	if spans.Length() < 2 {
		return nil, fmt.Errorf("expected 2 labelled spans, found %d", spans.Length())
	}
	curator := strings.TrimSpace(spans.Eq(0).Text())
	rawTags := strings.TrimSpace(spans.Eq(1).Text())

	images := row.Find("img")
	if images.Length() < 2 {
		return nil, fmt.Errorf("missing license icon")
	}
	licenseSrc := images.Eq(1).AttrOr("src", "")
	license := strings.TrimSuffix(path.Base(licenseSrc), path.Ext(licenseSrc))

	onclick := row.Find(".button").First().AttrOr("onclick", "")
	m := detailURLRe.FindStringSubmatch(onclick)
	if m == nil {
		return nil, fmt.Errorf("missing metadata action callback")
	}
	detailURL := p.gatewayURL + m[1]

	var tags []string
	if rawTags != "" {
		for _, tag := range strings.Split(rawTags, ",") {
			tags = append(tags, strings.TrimSpace(tag))
		}
	}

	return &Entry{
		Title:       title,
		Description: description,
		Curator:     curator,
		Tags:        tags,
		XMLURL:      xmlURL,
		ZipURL:      zipURL,
		RDFURL:      rdfURL,
		DetailURL:   detailURL,
		License:     license,
	}, nil
}
