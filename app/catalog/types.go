package catalog

// Entry is one dataset listing parsed from the portal's index page.
// DetailURL is the canonical identifier used for deduplication.
type Entry struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Curator     string   `json:"curator"`
	Tags        []string `json:"tags"`
	XMLURL      string   `json:"xml_url"`
	ZipURL      string   `json:"zip_url"`
	RDFURL      string   `json:"rdf_url"`
	DetailURL   string   `json:"detail_url"`
	License     string   `json:"license"`
}
