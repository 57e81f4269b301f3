package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Catalog (CKAN) configuration
	CatalogURL    string
	CatalogAPIKey string

	// Application configuration
	SourcesDir        string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
