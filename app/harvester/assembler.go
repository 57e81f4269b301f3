package harvester

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/patgeo/geoharvest/app/ckan"
	"github.com/patgeo/geoharvest/app/metadata"
)

// uploadedFile pairs a stored file's public URL with its local path
type uploadedFile struct {
	URL  string
	Name string
}

var slugCleanRe = regexp.MustCompile(`[^a-z0-9-_]+`)

// slugify derives a catalog-safe dataset name from a human title
func slugify(title string) string {
	slug := slugCleanRe.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// assemblePackage builds the catalog package for a unit: fixed license
// block, normalized tags, the full extracted metadata as extras, and the
// resource list in its canonical order: metadata XML, RDF, the uploaded
// archive, then one entry per converted file.
func (h *Harvester) assemblePackage(payload *Payload, meta map[string]string, zipURL string, csvs []uploadedFile) *ckan.Package {
	notes := meta[metadata.DescriptionLabel]
	modified := meta[metadata.ModifiedLabel]

	pkg := &ckan.Package{
		ID:               Fingerprint(payload.DetailURL),
		Name:             slugify(payload.Title),
		Title:            payload.Title,
		Notes:            notes,
		URL:              h.cfg.Source.SiteURL,
		Author:           meta[metadata.AuthorLabel],
		AuthorEmail:      meta[metadata.AuthorEmailLabel],
		Maintainer:       meta[metadata.MaintainerLabel],
		MaintainerEmail:  meta[metadata.MaintainerLabel],
		Tags:             append(h.normalizer.Run(payload.Tags), h.cfg.Extraction.ExtraTags...),
		Extras:           meta,
		Groups:           []string{"geodati"},
		IsOpen:           true,
		License:          h.cfg.License.Title,
		LicenseID:        h.cfg.License.ID,
		LicenseTitle:     h.cfg.License.Title,
		LicenseURL:       h.cfg.License.URL,
		MetadataModified: modified,
	}

	pkg.Resources = []ckan.Resource{
		{
			URL:          payload.XMLURL,
			Format:       "xml",
			Mimetype:     "application/xml",
			ResourceType: "api",
			Description:  notes,
			Name:         "Metadati in formato XML",
			LastModified: modified,
		},
		{
			URL:          payload.RDFURL,
			Format:       "rdf",
			Mimetype:     "application/rdf+xml",
			ResourceType: "api",
			Description:  notes,
			Name:         "Dati in formato RDF",
			LastModified: modified,
		},
		{
			URL:           zipURL,
			Format:        "ESRI ShapeFile",
			Mimetype:      "application/zip",
			MimetypeInner: "application/shp",
			ResourceType:  "file",
			Description:   notes,
			Name:          "Dati in formato Shapefile",
			LastModified:  modified,
		},
	}

	for _, csv := range csvs {
		pkg.Resources = append(pkg.Resources, ckan.Resource{
			URL:          csv.URL,
			Format:       "csv",
			Mimetype:     "text/csv",
			ResourceType: "file",
			Description:  notes,
			Name:         filepath.Base(csv.Name),
			LastModified: modified,
		})
	}

	return pkg
}
