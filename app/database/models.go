package database

import (
	"time"
)

// Harvest stages. A unit moves discovered -> fetched -> imported; failed is
// reachable from any stage.
const (
	StageDiscovered = "discovered"
	StageFetched    = "fetched"
	StageImported   = "imported"
	StageFailed     = "failed"
)

// Unit represents one catalog entry moving through the harvest pipeline.
// The fingerprint is a deterministic hash of the entry's detail URL and is
// the stable dataset identity across runs.
type Unit struct {
	ID          int64
	SourceName  string
	Fingerprint string
	Stage       string
	Payload     string // serialized catalog entry, augmented stage by stage
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
