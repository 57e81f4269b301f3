package harvester

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/patgeo/geoharvest/app/ckan"
	"github.com/patgeo/geoharvest/app/config"
	"github.com/patgeo/geoharvest/app/database"
)

const indexPage = `
<html><body><table>
  <tr>
    <td><h1>Ambiti fluviali</h1><h2>Perimetrazione degli ambiti fluviali</h2></td>
    <td><span>Servizio Urbanistica</span><span>Bosc, Comun, 1:10000</span></td>
    <td><img src="/img/logo.png"/><img src="/img/cc-zero.png"/></td>
    <td>
      <a class="button" onclick="getGatewayedAction('srv/it/metadata.show?id=42')">metadata</a>
      <a class="button1" href="http://portal.example.org/data/ambiti.xml">xml</a>
      <a class="button1" href="http://portal.example.org/data/ambiti.zip">zip</a>
      <a class="button1" href="http://portal.example.org/data/ambiti.rdf">rdf</a>
    </td>
  </tr>
</table></body></html>`

const metadataDoc = `<?xml version="1.0" encoding="UTF-8"?>
<gmd:MD_Metadata xmlns:gmd="http://www.isotc211.org/2005/gmd"
                 xmlns:gco="http://www.isotc211.org/2005/gco">
  <gmd:dateStamp><gco:Date>2013-06-02</gco:Date></gmd:dateStamp>
  <gmd:identificationInfo>
    <gmd:MD_DataIdentification>
      <gmd:citation>
        <gmd:CI_Citation>
          <gmd:date>
            <gmd:CI_Date>
              <gmd:date><gco:Date>2013-05-21</gco:Date></gmd:date>
            </gmd:CI_Date>
          </gmd:date>
        </gmd:CI_Citation>
      </gmd:citation>
      <gmd:abstract>
        <gco:CharacterString>Perimetrazione degli ambiti fluviali</gco:CharacterString>
      </gmd:abstract>
      <gmd:pointOfContact>
        <gmd:CI_ResponsibleParty>
          <gmd:organisationName>
            <gco:CharacterString>Servizio Urbanistica</gco:CharacterString>
          </gmd:organisationName>
          <gmd:contactInfo>
            <gmd:CI_Contact>
              <gmd:address>
                <gmd:CI_Address>
                  <gmd:electronicMailAddress>
                    <gco:CharacterString>serv.urbanistica@provincia.tn.it</gco:CharacterString>
                  </gmd:electronicMailAddress>
                </gmd:CI_Address>
              </gmd:address>
            </gmd:CI_Contact>
          </gmd:contactInfo>
        </gmd:CI_ResponsibleParty>
      </gmd:pointOfContact>
    </gmd:MD_DataIdentification>
  </gmd:identificationInfo>
</gmd:MD_Metadata>`

const rulesContent = `Metadato: Data dei metadati|//gmd:dateStamp/gco:Date
Informazioni di Identificazione: Data|//gmd:CI_Date/gmd:date/gco:Date
Informazioni di Identificazione: Descrizione|//gmd:abstract/gco:CharacterString
Informazioni di Identificazione: Nome dell'Ente|//gmd:pointOfContact//gmd:organisationName/gco:CharacterString
Informazioni di Identificazione: E-mail|//gmd:pointOfContact//gmd:electronicMailAddress/gco:CharacterString
`

// memoryRepository is an in-memory UnitRepository for pipeline tests
type memoryRepository struct {
	units         map[int64]*database.Unit
	byFingerprint map[string]int64
	nextID        int64
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		units:         make(map[int64]*database.Unit),
		byFingerprint: make(map[string]int64),
	}
}

func (r *memoryRepository) GetUnit(id int64) (*database.Unit, error) {
	unit, found := r.units[id]
	if !found {
		return nil, nil
	}
	copied := *unit
	return &copied, nil
}

func (r *memoryRepository) GetUnitByFingerprint(fingerprint string) (*database.Unit, error) {
	id, found := r.byFingerprint[fingerprint]
	if !found {
		return nil, nil
	}
	return r.GetUnit(id)
}

func (r *memoryRepository) GetUnitsByStage(stage string, limit int) ([]database.Unit, error) {
	var units []database.Unit
	for _, unit := range r.units {
		if unit.Stage == stage {
			units = append(units, *unit)
		}
		if limit > 0 && len(units) >= limit {
			break
		}
	}
	return units, nil
}

func (r *memoryRepository) GetUnitCount() (int, error) {
	return len(r.units), nil
}

func (r *memoryRepository) GetStageStats() (map[string]int, error) {
	stats := make(map[string]int)
	for _, unit := range r.units {
		stats[unit.Stage]++
	}
	return stats, nil
}

func (r *memoryRepository) UpsertUnit(sourceName, fingerprint, payload string) (int64, bool, error) {
	if id, found := r.byFingerprint[fingerprint]; found {
		unit := r.units[id]
		unit.SourceName = sourceName
		unit.Payload = payload
		unit.Stage = database.StageDiscovered
		unit.Error = ""
		return id, false, nil
	}
	r.nextID++
	r.units[r.nextID] = &database.Unit{
		ID:          r.nextID,
		SourceName:  sourceName,
		Fingerprint: fingerprint,
		Stage:       database.StageDiscovered,
		Payload:     payload,
	}
	r.byFingerprint[fingerprint] = r.nextID
	return r.nextID, true, nil
}

func (r *memoryRepository) UpdateUnit(id int64, payload, stage string) error {
	unit, found := r.units[id]
	if !found {
		return fmt.Errorf("unit %d not found", id)
	}
	unit.Payload = payload
	unit.Stage = stage
	return nil
}

func (r *memoryRepository) MarkUnitFailed(id int64, message string) error {
	unit, found := r.units[id]
	if !found {
		return fmt.Errorf("unit %d not found", id)
	}
	unit.Stage = database.StageFailed
	unit.Error = message
	return nil
}

// csvStubConverter writes a one-line csv per vector file without touching
// the shapefile format.
type csvStubConverter struct{}

func (csvStubConverter) Convert(shpFile, outDir string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(shpFile), filepath.Ext(shpFile))
	outputFile := filepath.Join(outDir, base+".csv")
	if err := os.WriteFile(outputFile, []byte("NOME\n"), 0o644); err != nil {
		return "", err
	}
	return outputFile, nil
}

func newTestSourceConfig(t *testing.T) *config.SourceConfig {
	t.Helper()

	rulesFile := filepath.Join(t.TempDir(), "xpath_rules.lst")
	if err := os.WriteFile(rulesFile, []byte(rulesContent), 0o644); err != nil {
		t.Fatal(err)
	}

	return &config.SourceConfig{
		Source: config.SourceInfo{
			Name:       "patgeo",
			Title:      "Geocatalogo PAT",
			IndexURL:   "http://portal.example.org/index",
			GatewayURL: "http://portal.example.org/gateway/",
			SiteURL:    "http://portal.example.org/",
		},
		Extraction: config.Extraction{
			RulesFile: rulesFile,
			Publisher: "Provincia Autonoma di Trento",
			Charset:   "utf-8",
			ExtraTags: []string{"Ambiente"},
		},
		License: config.License{
			ID:    "cc-zero",
			Title: "Creative Commons CCZero",
			URL:   "http://creativecommons.org/publicdomain/zero/1.0/deed.it",
		},
		Tags: config.TagTables{
			Remove:        config.DefaultTagsRemove,
			Substitutions: config.DefaultTagSubstitutions,
		},
		Cleanup: config.Cleanup{ProtectedPaths: config.DefaultProtectedPaths},
	}
}

func newTestHarvester(t *testing.T, repository database.UnitRepository) *Harvester {
	t.Helper()

	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	cfg := newTestSourceConfig(t)
	client := ckan.NewClient("http://catalog.example.org", "secret", httpClient)

	return NewHarvester(cfg, repository, client, httpClient, csvStubConverter{}, nil, "GeoHarvest/1.0 test")
}

func buildArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range map[string]string{"strade.shp": "shp", "strade.prj": "prj"} {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDiscoverPersistsUnits(t *testing.T) {
	repository := newMemoryRepository()
	h := newTestHarvester(t, repository)

	count, err := h.Discover(strings.NewReader(indexPage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("processed entries = %d, want 1", count)
	}

	fingerprint := Fingerprint("http://portal.example.org/gateway/srv/it/metadata.show?id=42")
	unit, err := repository.GetUnitByFingerprint(fingerprint)
	if err != nil || unit == nil {
		t.Fatalf("unit not persisted: %v", err)
	}
	if unit.Stage != database.StageDiscovered {
		t.Errorf("stage = %q, want discovered", unit.Stage)
	}

	var payload Payload
	if err := json.Unmarshal([]byte(unit.Payload), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Title != "Ambiti fluviali" {
		t.Errorf("payload title = %q", payload.Title)
	}
	if payload.ZipFile != "" || payload.XMLFile != "" {
		t.Error("discovered payload must not carry local file paths")
	}
}

func TestDiscoverIsIdempotent(t *testing.T) {
	repository := newMemoryRepository()

	// two separate harvester instances, so the in-process cache cannot mask
	// a broken upsert
	if _, err := newTestHarvester(t, repository).Discover(strings.NewReader(indexPage)); err != nil {
		t.Fatal(err)
	}
	if _, err := newTestHarvester(t, repository).Discover(strings.NewReader(indexPage)); err != nil {
		t.Fatal(err)
	}

	total, _ := repository.GetUnitCount()
	if total != 1 {
		t.Errorf("unit count = %d after re-discovery, want 1", total)
	}
}

func TestDiscoverResetsKnownUnits(t *testing.T) {
	repository := newMemoryRepository()
	h := newTestHarvester(t, repository)

	// same harvester instance across both runs, so the in-run cache must
	// not survive into the second discovery
	if _, err := h.Discover(strings.NewReader(indexPage)); err != nil {
		t.Fatal(err)
	}
	unit, _ := repository.GetUnit(1)
	if err := repository.UpdateUnit(unit.ID, unit.Payload, database.StageImported); err != nil {
		t.Fatal(err)
	}

	updatedPage := strings.Replace(indexPage, "Ambiti fluviali", "Ambiti fluviali 2024", 1)
	if _, err := h.Discover(strings.NewReader(updatedPage)); err != nil {
		t.Fatal(err)
	}

	unit, _ = repository.GetUnit(1)
	if unit.Stage != database.StageDiscovered {
		t.Errorf("stage = %q, want discovered after re-discovery", unit.Stage)
	}

	var payload Payload
	if err := json.Unmarshal([]byte(unit.Payload), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Title != "Ambiti fluviali 2024" {
		t.Errorf("payload title = %q, want the refreshed portal title", payload.Title)
	}

	total, _ := repository.GetUnitCount()
	if total != 1 {
		t.Errorf("unit count = %d, want 1", total)
	}
}

func TestFetchAdvancesUnit(t *testing.T) {
	repository := newMemoryRepository()
	h := newTestHarvester(t, repository)

	httpmock.RegisterResponder("GET", "http://portal.example.org/data/ambiti.zip",
		httpmock.NewBytesResponder(200, buildArchive(t)))
	httpmock.RegisterResponder("GET", "http://portal.example.org/data/ambiti.xml",
		httpmock.NewStringResponder(200, metadataDoc))

	if _, err := h.Discover(strings.NewReader(indexPage)); err != nil {
		t.Fatal(err)
	}
	unit, _ := repository.GetUnit(1)

	if err := h.Fetch(unit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	unit, _ = repository.GetUnit(1)
	if unit.Stage != database.StageFetched {
		t.Fatalf("stage = %q, want fetched", unit.Stage)
	}

	var payload Payload
	if err := json.Unmarshal([]byte(unit.Payload), &payload); err != nil {
		t.Fatal(err)
	}
	for _, file := range []string{payload.ZipFile, payload.XMLFile} {
		if file == "" {
			t.Fatal("fetched payload must carry local file paths")
		}
		if _, err := os.Stat(file); err != nil {
			t.Errorf("fetched file missing: %v", err)
		}
		defer os.Remove(file)
	}
}

func TestFetchDownloadFailureMarksUnitFailed(t *testing.T) {
	repository := newMemoryRepository()
	h := newTestHarvester(t, repository)

	httpmock.RegisterResponder("GET", "http://portal.example.org/data/ambiti.zip",
		httpmock.NewStringResponder(404, "gone"))

	if _, err := h.Discover(strings.NewReader(indexPage)); err != nil {
		t.Fatal(err)
	}
	unit, _ := repository.GetUnit(1)

	// the failure is absorbed at the unit boundary
	if err := h.Fetch(unit); err != nil {
		t.Fatalf("download failure must not propagate, got %v", err)
	}

	unit, _ = repository.GetUnit(1)
	if unit.Stage != database.StageFailed {
		t.Errorf("stage = %q, want failed", unit.Stage)
	}
	if unit.Error == "" {
		t.Error("failed unit must record its error")
	}
}

func TestImportPublishesPackage(t *testing.T) {
	repository := newMemoryRepository()
	h := newTestHarvester(t, repository)

	httpmock.RegisterResponder("GET", "http://portal.example.org/data/ambiti.zip",
		httpmock.NewBytesResponder(200, buildArchive(t)))
	httpmock.RegisterResponder("GET", "http://portal.example.org/data/ambiti.xml",
		httpmock.NewStringResponder(200, metadataDoc))
	httpmock.RegisterResponder("POST", "http://catalog.example.org/api/storage/upload",
		httpmock.NewStringResponder(200, `{"url": "/storage/f/upload"}`))
	httpmock.RegisterResponder("GET", `=~^http://catalog\.example\.org/api/rest/dataset/`,
		httpmock.NewStringResponder(404, "Not found"))

	var published ckan.Package
	httpmock.RegisterResponder("POST", "http://catalog.example.org/api/rest/dataset",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&published); err != nil {
				t.Fatal(err)
			}
			return httpmock.NewStringResponse(201, "{}"), nil
		})

	if _, err := h.Discover(strings.NewReader(indexPage)); err != nil {
		t.Fatal(err)
	}
	unit, _ := repository.GetUnit(1)
	if err := h.Fetch(unit); err != nil {
		t.Fatal(err)
	}
	unit, _ = repository.GetUnit(1)

	var fetched Payload
	if err := json.Unmarshal([]byte(unit.Payload), &fetched); err != nil {
		t.Fatal(err)
	}

	if err := h.Import(unit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	unit, _ = repository.GetUnit(1)
	if unit.Stage != database.StageImported {
		t.Fatalf("stage = %q, want imported", unit.Stage)
	}

	if published.ID != Fingerprint("http://portal.example.org/gateway/srv/it/metadata.show?id=42") {
		t.Errorf("package id = %q", published.ID)
	}
	if published.Name != "ambiti-fluviali" {
		t.Errorf("package name = %q, want ambiti-fluviali", published.Name)
	}
	if published.Notes != "Perimetrazione degli ambiti fluviali" {
		t.Errorf("notes = %q", published.Notes)
	}
	if published.LicenseID != "cc-zero" {
		t.Errorf("license id = %q", published.LicenseID)
	}
	if published.MetadataModified != "2013-06-02" {
		t.Errorf("metadata_modified = %q", published.MetadataModified)
	}

	wantTags := []string{"boschi", "comuni", "Ambiente"}
	if len(published.Tags) != len(wantTags) {
		t.Fatalf("tags = %v, want %v", published.Tags, wantTags)
	}
	for i, tag := range wantTags {
		if published.Tags[i] != tag {
			t.Errorf("tag[%d] = %q, want %q", i, published.Tags[i], tag)
		}
	}

	// resource order: metadata XML, RDF, archive, then converted files
	if len(published.Resources) != 4 {
		t.Fatalf("resources = %d, want 4", len(published.Resources))
	}
	wantNames := []string{"Metadati in formato XML", "Dati in formato RDF", "Dati in formato Shapefile", "strade.csv"}
	for i, name := range wantNames {
		if published.Resources[i].Name != name {
			t.Errorf("resource[%d] = %q, want %q", i, published.Resources[i].Name, name)
		}
	}
	if published.Resources[2].URL != "http://catalog.example.org/storage/f/upload" {
		t.Errorf("archive resource url = %q", published.Resources[2].URL)
	}

	// local files are removed once the unit is imported
	for _, file := range []string{fetched.ZipFile, fetched.XMLFile} {
		if _, err := os.Stat(file); !os.IsNotExist(err) {
			t.Errorf("file %s should be deleted after import", file)
		}
	}
}

func TestImportCorruptPayloadMarksUnitFailed(t *testing.T) {
	repository := newMemoryRepository()
	h := newTestHarvester(t, repository)

	id, _, err := repository.UpsertUnit("patgeo", "deadbeef", "{not json")
	if err != nil {
		t.Fatal(err)
	}
	repository.UpdateUnit(id, "{not json", database.StageFetched)
	unit, _ := repository.GetUnit(id)

	if err := h.Import(unit); err != nil {
		t.Fatalf("corrupt payload must not propagate, got %v", err)
	}

	unit, _ = repository.GetUnit(id)
	if unit.Stage != database.StageFailed {
		t.Errorf("stage = %q, want failed", unit.Stage)
	}
}
