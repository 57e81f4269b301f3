package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patgeo/geoharvest/app/database"
	"github.com/patgeo/geoharvest/app/harvester"
)

// ImportTask converts and publishes one fetched unit.
type ImportTask struct {
	Task
	UnitID    int64
	harvester *harvester.Harvester
	unitRepo  database.UnitRepository
	release   func()
}

func NewImportTask(sourceName string, unitID int64, h *harvester.Harvester, unitRepo database.UnitRepository, release func()) *ImportTask {
	return &ImportTask{
		Task:      NewTask(TaskTypeImport, sourceName),
		UnitID:    unitID,
		harvester: h,
		unitRepo:  unitRepo,
		release:   release,
	}
}

func (t *ImportTask) Execute(ctx context.Context) error {
	defer t.release()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	unit, err := t.unitRepo.GetUnit(t.UnitID)
	if err != nil {
		return fmt.Errorf("failed to load unit: %w", err)
	}
	if unit == nil || unit.Stage != database.StageFetched {
		slog.Debug("Unit no longer pending import, skipping", "unit", t.UnitID)
		return nil
	}

	if err := t.harvester.Import(unit); err != nil {
		return fmt.Errorf("failed to import unit: %w", err)
	}

	slog.Info("Task completed",
		"type", "Import",
		"source", t.SourceName,
		"duration", t.GetDuration().Round(time.Millisecond),
		"unit", t.UnitID)

	return nil
}
