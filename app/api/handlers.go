package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/patgeo/geoharvest/app/config"
	"github.com/patgeo/geoharvest/app/database"
	"github.com/patgeo/geoharvest/app/harvester"
	"github.com/patgeo/geoharvest/app/metrics"
	"github.com/patgeo/geoharvest/app/tasks"
)

func NewHandler(unitRepo database.UnitRepository, sourceConfigs map[string]*config.SourceConfig,
	harvesters map[string]*harvester.Harvester, scheduler tasks.TaskSchedulerInterface,
	httpClient *http.Client, m *metrics.Metrics, userAgent string) *Handler {
	return &Handler{
		unitRepo:      unitRepo,
		sourceConfigs: sourceConfigs,
		harvesters:    harvesters,
		scheduler:     scheduler,
		httpClient:    httpClient,
		metrics:       m,
		userAgent:     userAgent,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if unitCount, err := h.unitRepo.GetUnitCount(); err == nil {
		health["units"] = unitCount
	}

	health["loaded_sources"] = len(h.sourceConfigs)

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.unitRepo.GetStageStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_stage_stats", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"stages":  stats,
		"sources": len(h.sourceConfigs),
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources := make([]map[string]interface{}, 0, len(h.sourceConfigs))

	for name, sourceConfig := range h.sourceConfigs {
		sources = append(sources, map[string]interface{}{
			"name":             name,
			"title":            sourceConfig.Source.Title,
			"index_url":        sourceConfig.Source.IndexURL,
			"enabled":          sourceConfig.Settings.Enabled,
			"refresh_interval": sourceConfig.Settings.GetRefreshInterval().String(),
			"publisher":        sourceConfig.Extraction.Publisher,
			"license":          sourceConfig.License.ID,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIListUnits(c *gin.Context) {
	stage := c.DefaultQuery("stage", database.StageDiscovered)
	switch stage {
	case database.StageDiscovered, database.StageFetched, database.StageImported, database.StageFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown stage: " + stage})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	units, err := h.unitRepo.GetUnitsByStage(stage, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_units_by_stage", "stage", stage, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	list := make([]map[string]interface{}, 0, len(units))
	for _, unit := range units {
		entry := map[string]interface{}{
			"id":          unit.ID,
			"source":      unit.SourceName,
			"fingerprint": unit.Fingerprint,
			"stage":       unit.Stage,
			"created_at":  unit.CreatedAt,
			"updated_at":  unit.UpdatedAt,
		}
		if unit.Error != "" {
			entry["error"] = unit.Error
		}
		list = append(list, entry)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"units": list,
		"stage": stage,
		"total": len(list),
	})
}

func (h *Handler) APITriggerHarvest(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	sourceConfig, found := h.sourceConfigs[name]
	if !found {
		slog.Error("Source configuration not found", "source", name)
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	task := tasks.NewDiscoverTask(name, sourceConfig, h.harvesters[name], h.httpClient, h.userAgent)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing discover task", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue discover task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Harvest scheduled",
		"source":  name,
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
		},
	})
}
