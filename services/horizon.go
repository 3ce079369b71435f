package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"booking-search-platform/internal/database"
	"booking-search-platform/internal/logger"
	"booking-search-platform/internal/queue"
	"booking-search-platform/internal/search"
	"booking-search-platform/internal/telemetry"
)

// HorizonService keeps the index's rolling window in shape: schedule
// documents behind today are evicted, the forward window is re-extended
// by enqueueing unit reindexes, and dangling schedules are surfaced.
type HorizonService struct {
	scheduler *gocron.Scheduler
	repos     *database.Repositories
	writer    search.DocumentWriter
	producer  *queue.Client
	metrics   *telemetry.Metrics
}

func NewHorizonService(repos *database.Repositories, writer search.DocumentWriter, producer *queue.Client, metrics *telemetry.Metrics) *HorizonService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &HorizonService{
		scheduler: s,
		repos:     repos,
		writer:    writer,
		producer:  producer,
		metrics:   metrics,
	}
}

// Start schedules the daily maintenance run.
func (h *HorizonService) Start() error {
	_, err := h.scheduler.Every(1).Day().At("03:00").Tag("horizon-maintenance").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := h.RunOnce(ctx); err != nil {
			logger.Error("Horizon maintenance failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	h.scheduler.StartAsync()
	logger.Info("Horizon maintenance scheduled", "at", "03:00 UTC")
	return nil
}

// Stop stops the scheduler.
func (h *HorizonService) Stop() {
	h.scheduler.Stop()
}

// RunOnce performs one maintenance pass.
func (h *HorizonService) RunOnce(ctx context.Context) error {
	today := dayStart(time.Now())

	// Evict documents for days that fell out of the window.
	staleIDs, err := h.repos.ListScheduleIDsBefore(ctx, today)
	if err != nil {
		return err
	}
	if len(staleIDs) > 0 {
		if err := h.writer.DeleteScheduleKeys(ctx, staleIDs); err != nil {
			return err
		}
		h.metrics.RecordHorizonEvictions(ctx, int64(len(staleIDs)))
		logger.Info("Evicted out-of-horizon schedule documents", "count", len(staleIDs))
	}

	// Dangling schedules reference units that no longer exist. That is a
	// consistency defect in the source data; surface it loudly and drop
	// their documents so the query side stops seeing them.
	danglingIDs, err := h.repos.FindDanglingScheduleIDs(ctx, 500)
	if err != nil {
		return err
	}
	if len(danglingIDs) > 0 {
		logger.Error("Found dangling schedules referencing missing units; source data needs repair",
			"count", len(danglingIDs), "sample", danglingIDs[0])
		if err := h.writer.DeleteScheduleKeys(ctx, danglingIDs); err != nil {
			return err
		}
	}

	// Extend the forward window: each unit reindex rewrites its horizon.
	unitIDs, err := h.repos.ListApprovedUnitIDs(ctx)
	if err != nil {
		return err
	}
	var failed int
	for _, id := range unitIDs {
		if err := h.producer.EnqueueReindexUnit(id, 0); err != nil {
			failed++
		}
	}
	logger.Info("Horizon extension enqueued", "units", len(unitIDs), "enqueue_failures", failed)

	return nil
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
