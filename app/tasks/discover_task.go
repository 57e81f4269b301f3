package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/patgeo/geoharvest/app/config"
	"github.com/patgeo/geoharvest/app/harvester"
)

// DiscoverTask downloads a source's index page and persists one harvest
// unit per catalog entry.
type DiscoverTask struct {
	Task
	SourceConfig *config.SourceConfig
	harvester    *harvester.Harvester
	httpClient   *http.Client
	userAgent    string
}

func NewDiscoverTask(sourceName string, sourceConfig *config.SourceConfig, h *harvester.Harvester, httpClient *http.Client, userAgent string) *DiscoverTask {
	return &DiscoverTask{
		Task:         NewTask(TaskTypeDiscover, sourceName),
		SourceConfig: sourceConfig,
		harvester:    h,
		httpClient:   httpClient,
		userAgent:    userAgent,
	}
}

func (t *DiscoverTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.SourceConfig.Settings.Enabled {
		slog.Debug("Source disabled, skipping", "source", t.SourceName)
		return nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, t.SourceConfig.Settings.GetTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", t.SourceConfig.Source.IndexURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch index page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	count, err := t.harvester.Discover(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to discover catalog entries: %w", err)
	}

	slog.Info("Task completed",
		"type", "Discover",
		"source", t.SourceName,
		"duration", t.GetDuration().Round(time.Millisecond),
		"entries", count)

	return nil
}
