// Package metadata evaluates a declarative XPath rule set against ISO 19139
// metadata documents and derives the fixed fields published alongside every
// dataset.
package metadata

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Labels the harvester depends on beyond plain extras. They must match the
// labels used in the deployed rule file.
const (
	DateLabel        = "Informazioni di Identificazione: Data"
	CharsetLabel     = "Informazioni di Identificazione: Set dei caratteri dei metadati"
	ContactURLLabel  = "Informazioni di Identificazione: Punto di Contatto: Risorsa Online"
	DescriptionLabel = "Informazioni di Identificazione: Descrizione"
	AuthorLabel      = "Informazioni di Identificazione: Nome dell'Ente"
	AuthorEmailLabel = "Informazioni di Identificazione: E-mail"
	MaintainerLabel  = "Informazioni sulla Distribuzione: Distributore: E-mail"
	ModifiedLabel    = "Metadato: Data dei metadati"
)

// Derived keys merged into the mapping after rule evaluation.
const (
	PublisherKey     = "Titolare"
	CharsetKey       = "Codifica Caratteri"
	TemporalFromKey  = "Copertura Temporale (Data di inizio)"
	TemporalToKey    = "Copertura Temporale (Data di fine)"
	PublishedKey     = "Data di pubblicazione"
	UpdatedKey       = "Data di aggiornamento"
	CreatedKey       = "Data di creazione"
	UpdateCadenceKey = "Aggiornamento"
	SiteURLKey       = "URL sito"
)

// namespaces are the standard geographic-metadata bindings registered
// before any rule runs.
var namespaces = map[string]string{
	"gmd":   "http://www.isotc211.org/2005/gmd",
	"gml":   "http://www.opengis.net/gml/3.2",
	"gco":   "http://www.isotc211.org/2005/gco",
	"xlink": "http://www.w3.org/1999/xlink",
}

// Extractor evaluates a rule file against XML metadata documents.
type Extractor struct {
	rulesFile string
	publisher string
}

// NewExtractor creates an extractor bound to a rule file and the publisher
// name injected into every extraction.
func NewExtractor(rulesFile, publisher string) *Extractor {
	return &Extractor{rulesFile: rulesFile, publisher: publisher}
}

// Run parses the XML document once and evaluates every rule against it.
// A rule whose XPath fails to compile or evaluate is logged and skipped;
// the one load-bearing date field is parsed strictly and its failure is
// fatal, since four derived fields depend on it. The returned mapping is
// deterministic given the same document and rule file.
func (e *Extractor) Run(xmlFile string) (map[string]string, error) {
	rules, err := LoadRules(e.rulesFile)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(xmlFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata document: %w", err)
	}
	defer f.Close()

	doc, err := xmlquery.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata document: %w", err)
	}

	meta := make(map[string]string)
	for _, rule := range rules {
		expr, err := xpath.CompileWithNS(rule.Expr, namespaces)
		if err != nil {
			slog.Debug("Skipping rule with invalid XPath", "label", rule.Label, "error", err)
			continue
		}

		nodes := xmlquery.QuerySelectorAll(doc, expr)
		if len(nodes) == 0 {
			continue
		}
		meta[rule.Label] = trimmedText(nodes[0])
	}

	date, err := normalizeDate(pop(meta, DateLabel))
	if err != nil {
		return nil, fmt.Errorf("failed to parse identification date: %w", err)
	}

	derived := map[string]string{
		PublisherKey:     e.publisher,
		CharsetKey:       pop(meta, CharsetLabel),
		TemporalFromKey:  date,
		TemporalToKey:    "",
		PublishedKey:     date,
		UpdatedKey:       date,
		CreatedKey:       date,
		UpdateCadenceKey: "Non programmato",
		SiteURLKey:       pop(meta, ContactURLLabel),
	}
	for key, value := range derived {
		meta[key] = value
	}

	return meta, nil
}

// normalizeDate re-expresses a strict YYYY-MM-DD value as an ISO 8601
// timestamp at midnight.
func normalizeDate(raw string) (string, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02T15:04:05"), nil
}

func trimmedText(node *xmlquery.Node) string {
	return strings.TrimSpace(node.InnerText())
}

// pop removes a key from the mapping and returns its value.
func pop(meta map[string]string, key string) string {
	value := meta[key]
	delete(meta, key)
	return value
}
