// Package harvester drives the three-stage lifecycle of a harvest unit:
// discover persists catalog entries, fetch mirrors their remote files to
// disk, and import extracts, converts and publishes them. Failures are
// absorbed at the unit boundary; no unit can abort a harvest run.
package harvester

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/patgeo/geoharvest/app/catalog"
	"github.com/patgeo/geoharvest/app/ckan"
	"github.com/patgeo/geoharvest/app/config"
	"github.com/patgeo/geoharvest/app/convert"
	"github.com/patgeo/geoharvest/app/database"
	"github.com/patgeo/geoharvest/app/fileproc"
	"github.com/patgeo/geoharvest/app/metadata"
	"github.com/patgeo/geoharvest/app/metrics"
	"github.com/patgeo/geoharvest/app/tags"
)

// fingerprintCacheSize bounds the per-source cache of recently upserted
// fingerprints used to short-circuit repeated index rows.
const fingerprintCacheSize = 2048

// CatalogClient is the publishing side of the pipeline.
type CatalogClient interface {
	UpsertPackage(pkg *ckan.Package) (bool, error)
	UploadFile(path string) (string, error)
}

// Harvester runs the lifecycle stages for one configured source.
type Harvester struct {
	cfg        *config.SourceConfig
	repository database.UnitRepository
	client     CatalogClient
	parser     *catalog.Parser
	downloader *fileproc.Downloader
	processor  *fileproc.Processor
	extractor  *metadata.Extractor
	normalizer *tags.Normalizer
	pruner     *fileproc.Pruner
	seen       *lru.Cache[string, struct{}]
	metrics    *metrics.Metrics
}

// NewHarvester wires a harvester for the given source. The converter is
// injected so the vector conversion backend stays swappable; metrics may
// be nil.
func NewHarvester(cfg *config.SourceConfig, repository database.UnitRepository, client CatalogClient,
	httpClient *http.Client, converter convert.Converter, m *metrics.Metrics, userAgent string) *Harvester {

	pruner := fileproc.NewPruner(cfg.Cleanup.ProtectedPaths)
	seen, _ := lru.New[string, struct{}](fingerprintCacheSize)

	return &Harvester{
		cfg:        cfg,
		repository: repository,
		client:     client,
		parser:     catalog.NewParser(cfg.Source.GatewayURL),
		downloader: fileproc.NewDownloader(httpClient, userAgent),
		processor:  fileproc.NewProcessor(converter, pruner),
		extractor:  metadata.NewExtractor(cfg.Extraction.RulesFile, cfg.Extraction.Publisher),
		normalizer: tags.NewNormalizer(cfg.Tags.Remove, cfg.Tags.Substitutions),
		pruner:     pruner,
		seen:       seen,
		metrics:    m,
	}
}

// SourceName returns the configured name of the harvested source
func (h *Harvester) SourceName() string {
	return h.cfg.Source.Name
}

// Discover parses an index page and upserts one unit per entry, keyed by
// the fingerprint of its detail URL. A known unit is reset to the
// discovered stage with a fresh payload, so portal updates flow through
// the pipeline again on every harvest. Returns the number of entries
// processed.
func (h *Harvester) Discover(indexPage io.Reader) (int, error) {
	entries, err := h.parser.Run(indexPage)
	if err != nil {
		return 0, err
	}

	// the cache only dedupes repeated rows within one index page; each
	// harvest starts fresh so known units are re-upserted
	h.seen.Purge()

	for _, entry := range entries {
		fingerprint := Fingerprint(entry.DetailURL)
		if _, found := h.seen.Get(fingerprint); found {
			continue
		}

		payload, err := json.Marshal(Payload{Entry: entry})
		if err != nil {
			return 0, fmt.Errorf("failed to encode payload: %w", err)
		}

		_, created, err := h.repository.UpsertUnit(h.cfg.Source.Name, fingerprint, string(payload))
		if err != nil {
			return 0, err
		}
		h.seen.Add(fingerprint, struct{}{})
		if created {
			h.metrics.IncUnitsDiscovered()
			slog.Debug("Discovered unit", "source", h.cfg.Source.Name, "fingerprint", fingerprint, "title", entry.Title)
		}
	}

	slog.Info("Discovery finished", "source", h.cfg.Source.Name, "entries", len(entries))

	return len(entries), nil
}

// Fetch downloads the unit's archive and metadata document to local
// temporary files and advances it to the fetched stage. A failed download
// marks the unit failed; only repository errors propagate.
func (h *Harvester) Fetch(unit *database.Unit) error {
	payload, err := h.decodePayload(unit)
	if err != nil {
		return h.failUnit(unit, database.StageDiscovered, err)
	}

	zipFile, err := h.downloader.Run(payload.ZipURL)
	if err != nil {
		h.metrics.IncDownload("error")
		return h.failUnit(unit, database.StageDiscovered, err)
	}

	xmlFile, err := h.downloader.Run(payload.XMLURL)
	if err != nil {
		os.Remove(zipFile)
		h.metrics.IncDownload("error")
		return h.failUnit(unit, database.StageDiscovered, err)
	}
	h.metrics.IncDownload("success")

	payload.ZipFile = zipFile
	payload.XMLFile = xmlFile

	encoded, err := json.Marshal(payload)
	if err != nil {
		os.Remove(zipFile)
		os.Remove(xmlFile)
		return h.failUnit(unit, database.StageDiscovered, err)
	}

	if err := h.repository.UpdateUnit(unit.ID, string(encoded), database.StageFetched); err != nil {
		os.Remove(zipFile)
		os.Remove(xmlFile)
		return err
	}

	slog.Debug("Fetched unit", "source", h.cfg.Source.Name, "fingerprint", unit.Fingerprint)

	return nil
}

// Import turns a fetched unit into a published catalog package: extract
// metadata, convert the archive's vector files, upload the archive and
// every conversion output, then create or update the package. All local
// files are deleted whether the import succeeds or fails.
func (h *Harvester) Import(unit *database.Unit) error {
	started := time.Now()

	payload, err := h.decodePayload(unit)
	if err != nil {
		return h.failUnit(unit, database.StageFetched, err)
	}

	// snapshot the fetched paths: the payload fields are scrubbed before
	// persisting on success, but the files are removed either way
	xmlFile, zipFile := payload.XMLFile, payload.ZipFile
	defer func() {
		if xmlFile != "" {
			os.Remove(xmlFile)
		}
		if zipFile != "" {
			os.Remove(zipFile)
		}
	}()

	meta, err := h.extractor.Run(payload.XMLFile)
	if err != nil {
		return h.failUnit(unit, database.StageFetched, err)
	}

	results, workDir, err := h.processor.Run(payload.ZipFile)
	if err != nil {
		return h.failUnit(unit, database.StageFetched, err)
	}
	defer h.pruner.Run(workDir)

	zipURL, err := h.client.UploadFile(payload.ZipFile)
	if err != nil {
		return h.failUnit(unit, database.StageFetched, err)
	}

	var csvs []uploadedFile
	for _, result := range results {
		if result.Err != nil {
			h.metrics.IncConversion("error")
			continue
		}
		h.metrics.IncConversion("success")

		csvURL, err := h.client.UploadFile(result.OutputFile)
		if err != nil {
			return h.failUnit(unit, database.StageFetched, err)
		}
		csvs = append(csvs, uploadedFile{URL: csvURL, Name: result.OutputFile})
		os.Remove(result.OutputFile)
	}

	pkg := h.assemblePackage(payload, meta, zipURL, csvs)

	created, err := h.client.UpsertPackage(pkg)
	if err != nil {
		return h.failUnit(unit, database.StageFetched, err)
	}

	payload.Name = pkg.Name
	payload.XMLFile = ""
	payload.ZipFile = ""
	encoded, err := json.Marshal(payload)
	if err != nil {
		return h.failUnit(unit, database.StageFetched, err)
	}

	if err := h.repository.UpdateUnit(unit.ID, string(encoded), database.StageImported); err != nil {
		return err
	}

	h.metrics.IncPackagesPublished()
	h.metrics.ObserveImportDuration(time.Since(started))

	slog.Info("Imported unit", "source", h.cfg.Source.Name, "fingerprint", unit.Fingerprint,
		"package", pkg.Name, "created", created, "resources", len(pkg.Resources))

	return nil
}

// decodePayload restores the stage payload of a unit. A corrupt payload
// is unrecoverable for the unit.
func (h *Harvester) decodePayload(unit *database.Unit) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(unit.Payload), &payload); err != nil {
		return nil, fmt.Errorf("corrupt unit payload: %w", err)
	}
	return &payload, nil
}

// failUnit records a terminal stage failure for the unit. The triggering
// error is absorbed here; only a repository error propagates to the
// caller.
func (h *Harvester) failUnit(unit *database.Unit, stage string, cause error) error {
	slog.Error("Harvest unit failed", "source", h.cfg.Source.Name,
		"fingerprint", unit.Fingerprint, "stage", stage, "error", cause)
	h.metrics.IncStageFailure(stage)

	if err := h.repository.MarkUnitFailed(unit.ID, cause.Error()); err != nil {
		return err
	}
	return nil
}
