package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/patgeo/geoharvest/app/cfg"
	"github.com/patgeo/geoharvest/app/config"
	"github.com/patgeo/geoharvest/app/database"
	"github.com/patgeo/geoharvest/app/harvester"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// stageBatchSize caps how many pending units are enqueued per stage on
// each scheduler tick.
const stageBatchSize = 50

type Scheduler struct {
	sourceConfigs map[string]*config.SourceConfig
	harvesters    map[string]*harvester.Harvester
	unitRepo      database.UnitRepository
	httpClient    *http.Client
	userAgent     string
	interval      time.Duration
	workerCount   int
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	taskQueue     chan TaskInterface

	mu           sync.Mutex
	lastDiscover map[string]time.Time
	inflight     map[int64]struct{}
}

func NewScheduler(sourceConfigs map[string]*config.SourceConfig, harvesters map[string]*harvester.Harvester,
	unitRepo database.UnitRepository, httpClient *http.Client) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		sourceConfigs: sourceConfigs,
		harvesters:    harvesters,
		unitRepo:      unitRepo,
		httpClient:    httpClient,
		userAgent:     cfg.UserAgent,
		interval:      time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:   cfg.WorkerCount,
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, 300),
		lastDiscover:  make(map[string]time.Time),
		inflight:      make(map[int64]struct{}),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueDiscoverTasks(true)
		s.enqueueUnitTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDiscoverTasks(false)
				s.enqueueUnitTasks()
			}
		}
	}()
}

// Stop cancels the scheduler context and waits for workers and pending
// retry goroutines. The queue is left open: closing it would panic any
// late enqueue attempt racing with shutdown.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// enqueueDiscoverTasks schedules a discovery for every enabled source
// that is due. At startup every enabled source is due.
func (s *Scheduler) enqueueDiscoverTasks(startup bool) {
	if len(s.sourceConfigs) == 0 {
		slog.Debug("No source configurations found")
		return
	}

	now := time.Now().UTC()

	for name, sourceConfig := range s.sourceConfigs {
		if !sourceConfig.Settings.Enabled {
			slog.Debug("Source disabled, skipping DiscoverTask", "source", name)
			continue
		}

		s.mu.Lock()
		last, seen := s.lastDiscover[name]
		due := startup || !seen || now.Sub(last) >= sourceConfig.Settings.GetRefreshInterval()
		if due {
			s.lastDiscover[name] = now
		}
		s.mu.Unlock()

		if !due {
			slog.Debug("Source not due for discovery yet", "source", name, "last_discover", last)
			continue
		}

		task := NewDiscoverTask(name, sourceConfig, s.harvesters[name], s.httpClient, s.userAgent)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue DiscoverTask", "source", name, "error", err)
		}
	}
}

// enqueueUnitTasks advances pending units: discovered units get a
// FetchTask, fetched units an ImportTask. A unit is never enqueued twice
// concurrently.
func (s *Scheduler) enqueueUnitTasks() {
	s.enqueueStageTasks(database.StageDiscovered, func(unit database.Unit, h *harvester.Harvester, release func()) TaskInterface {
		return NewFetchTask(unit.SourceName, unit.ID, h, s.unitRepo, release)
	})
	s.enqueueStageTasks(database.StageFetched, func(unit database.Unit, h *harvester.Harvester, release func()) TaskInterface {
		return NewImportTask(unit.SourceName, unit.ID, h, s.unitRepo, release)
	})
}

func (s *Scheduler) enqueueStageTasks(stage string, build func(database.Unit, *harvester.Harvester, func()) TaskInterface) {
	units, err := s.unitRepo.GetUnitsByStage(stage, stageBatchSize)
	if err != nil {
		slog.Warn("Failed to list pending units", "stage", stage, "error", err)
		return
	}

	for _, unit := range units {
		h, found := s.harvesters[unit.SourceName]
		if !found {
			slog.Warn("No harvester for unit source, skipping", "source", unit.SourceName, "unit", unit.ID)
			continue
		}

		if !s.acquireUnit(unit.ID) {
			continue
		}

		unitID := unit.ID
		task := build(unit, h, func() { s.releaseUnit(unitID) })
		if err := s.EnqueueTask(task); err != nil {
			s.releaseUnit(unitID)
			slog.Warn("Failed to enqueue unit task", "stage", stage, "unit", unitID, "error", err)
		}
	}
}

func (s *Scheduler) acquireUnit(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.inflight[id]; found {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) releaseUnit(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 15*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()

				timer := time.NewTimer(retryDelay)
				defer timer.Stop()

				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
				case <-timer.C:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
