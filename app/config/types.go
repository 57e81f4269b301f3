package config

// SourceConfig represents a complete harvest source configuration
type SourceConfig struct {
	Source     SourceInfo     `yaml:"source"`
	Settings   SourceSettings `yaml:"settings"`
	Extraction Extraction     `yaml:"extraction"`
	License    License        `yaml:"license"`
	Tags       TagTables      `yaml:"tags"`
	Cleanup    Cleanup        `yaml:"cleanup"`
}

// SourceInfo identifies the remote portal being harvested
type SourceInfo struct {
	Name       string `yaml:"name"`
	Title      string `yaml:"title"`
	IndexURL   string `yaml:"index_url"`
	GatewayURL string `yaml:"gateway_url"`
	SiteURL    string `yaml:"site_url"`
}

// SourceSettings contains harvest processing settings
type SourceSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	Timeout         int  `yaml:"timeout"`          // seconds
}

// Extraction configures the metadata extraction engine
type Extraction struct {
	RulesFile string   `yaml:"rules_file"`
	Publisher string   `yaml:"publisher"`
	Charset   string   `yaml:"charset"`
	ExtraTags []string `yaml:"extra_tags"`
}

// License holds the fixed license block attached to every published dataset
type License struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// TagTables holds the tag normalization tables
type TagTables struct {
	Remove        []string          `yaml:"remove"`
	Substitutions map[string]string `yaml:"substitutions"`
}

// Cleanup configures the guarded directory removal
type Cleanup struct {
	ProtectedPaths []string `yaml:"protected_paths"`
}
