package harvester

import "github.com/patgeo/geoharvest/app/catalog"

// Payload is the JSON document a harvest unit carries between stages.
// Discovery stores the bare catalog entry; fetch adds the local file
// paths consumed by import.
type Payload struct {
	catalog.Entry
	Name    string `json:"name,omitempty"`
	XMLFile string `json:"xml_file,omitempty"`
	ZipFile string `json:"zip_file,omitempty"`
}
