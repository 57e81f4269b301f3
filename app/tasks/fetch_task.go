package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patgeo/geoharvest/app/database"
	"github.com/patgeo/geoharvest/app/harvester"
)

// FetchTask downloads the remote files of one discovered unit.
type FetchTask struct {
	Task
	UnitID    int64
	harvester *harvester.Harvester
	unitRepo  database.UnitRepository
	release   func()
}

func NewFetchTask(sourceName string, unitID int64, h *harvester.Harvester, unitRepo database.UnitRepository, release func()) *FetchTask {
	return &FetchTask{
		Task:      NewTask(TaskTypeFetch, sourceName),
		UnitID:    unitID,
		harvester: h,
		unitRepo:  unitRepo,
		release:   release,
	}
}

func (t *FetchTask) Execute(ctx context.Context) error {
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
	if unit == nil || unit.Stage != database.StageDiscovered {
		slog.Debug("Unit no longer pending fetch, skipping", "unit", t.UnitID)
		return nil
	}

	if err := t.harvester.Fetch(unit); err != nil {
		return fmt.Errorf("failed to fetch unit: %w", err)
	}

	slog.Info("Task completed",
		"type", "Fetch",
		"source", t.SourceName,
		"duration", t.GetDuration().Round(time.Millisecond),
		"unit", t.UnitID)

	return nil
}
