package ckan

// Resource describes one downloadable or linked representation of a
// dataset. The field names follow the catalog's REST payloads.
type Resource struct {
	URL           string `json:"url"`
	Format        string `json:"format"`
	Mimetype      string `json:"mimetype"`
	MimetypeInner string `json:"mimetype_inner,omitempty"`
	ResourceType  string `json:"resource_type"`
	Description   string `json:"description"`
	Name          string `json:"name"`
	LastModified  string `json:"last_modified,omitempty"`
}

// Package is a catalog dataset with its attached resources and free-form
// extras.
type Package struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Title            string            `json:"title"`
	Notes            string            `json:"notes"`
	URL              string            `json:"url"`
	Author           string            `json:"author"`
	AuthorEmail      string            `json:"author_email"`
	Maintainer       string            `json:"maintainer"`
	MaintainerEmail  string            `json:"maintainer_email"`
	Tags             []string          `json:"tags"`
	Extras           map[string]string `json:"extras"`
	Groups           []string          `json:"groups"`
	IsOpen           bool              `json:"isopen"`
	License          string            `json:"license"`
	LicenseID        string            `json:"license_id"`
	LicenseTitle     string            `json:"license_title"`
	LicenseURL       string            `json:"license_url"`
	Resources        []Resource        `json:"resources"`
	MetadataModified string            `json:"metadata_modified,omitempty"`
}
