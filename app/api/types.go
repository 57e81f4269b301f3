package api

import (
	"net/http"

	"github.com/patgeo/geoharvest/app/config"
	"github.com/patgeo/geoharvest/app/database"
	"github.com/patgeo/geoharvest/app/harvester"
	"github.com/patgeo/geoharvest/app/metrics"
	"github.com/patgeo/geoharvest/app/tasks"
)

type Handler struct {
	unitRepo      database.UnitRepository
	sourceConfigs map[string]*config.SourceConfig
	harvesters    map[string]*harvester.Harvester
	scheduler     tasks.TaskSchedulerInterface
	httpClient    *http.Client
	metrics       *metrics.Metrics
	userAgent     string
}
