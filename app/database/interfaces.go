package database

type UnitRepository interface {
	GetUnit(id int64) (*Unit, error)
	GetUnitByFingerprint(fingerprint string) (*Unit, error)
	GetUnitsByStage(stage string, limit int) ([]Unit, error)
	GetUnitCount() (int, error)
	GetStageStats() (map[string]int, error)

	UpsertUnit(sourceName, fingerprint, payload string) (int64, bool, error)
	UpdateUnit(id int64, payload, stage string) error
	MarkUnitFailed(id int64, message string) error
}
