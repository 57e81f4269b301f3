package config

// DefaultTagsRemove lists tag values dropped outright during normalization.
// These are portal-internal markers, not topical tags.
var DefaultTagsRemove = []string{
	"rndt", "siat", "pup", "db prior 10k", "pup; rndt", "inquadramenti di base",
	"suap", "scritte", "pupagri", "pupasc", "pupbos",
}

// DefaultTagSubstitutions folds spelling variants and truncated portal tags
// onto one canonical tag each.
var DefaultTagSubstitutions = map[string]string{
	"bosc":                          "boschi",
	"comun":                         "comuni",
	"siti archeolog":                "siti archeologici",
	"archeolog":                     "archeologia",
	"specchio d'acqua":              "specchi d'acqua",
	"tratte":                        "tratte ferroviarie",
	"viabilità di progetto":         "viabilità",
	"viabilità ferroviaria":         "viabilità",
	"viafer":                        "viabilità",
	"viabilit":                      "viabilità",
	"viabilità forestale":           "viabilità",
	"zps":                           "zone protezione speciale",
	"udf":                           "distretti forestali",
	"uffici distrettuali forestali": "distretti forestali",
	"pascolo":                       "pascoli",
	"idrografici":                   "idrografia",
}

// DefaultProtectedPaths must never be removed by the cleanup routine,
// whatever path ends up being passed in.
var DefaultProtectedPaths = []string{"/", "/home"}
