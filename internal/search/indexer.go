package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"booking-search-platform/internal/logger"
	"booking-search-platform/internal/telemetry"
)

// ErrWriteExhausted reports that the bounded write retries ran out. The
// triggering business operation must not fail because of it; the index
// is simply stale until the unit is reindexed again.
var ErrWriteExhausted = errors.New("store write retries exhausted")

// ErrUnitNotFound is wrapped by aggregate loaders when a unit is missing
// or soft-deleted; the orchestrator translates it into document removal.
var ErrUnitNotFound = errors.New("unit not found")

// RunState tracks one indexing attempt:
// Pending -> Attempting -> Succeeded | Retrying -> Attempting | ExhaustedFailed.
type RunState int

const (
	RunPending RunState = iota
	RunAttempting
	RunRetrying
	RunSucceeded
	RunExhaustedFailed
)

func (s RunState) String() string {
	switch s {
	case RunPending:
		return "pending"
	case RunAttempting:
		return "attempting"
	case RunRetrying:
		return "retrying"
	case RunSucceeded:
		return "succeeded"
	case RunExhaustedFailed:
		return "exhausted_failed"
	default:
		return "unknown"
	}
}

// AggregateLoader reads current catalog state from the relational
// collaborator.
type AggregateLoader interface {
	LoadUnitAggregate(ctx context.Context, unitID string, from, to time.Time) (*UnitAggregate, error)
	ListUnitIDsByField(ctx context.Context, fieldID string) ([]string, error)
	ListApprovedUnitIDs(ctx context.Context) ([]string, error)
	ListScheduleIDsForUnit(ctx context.Context, unitID string) ([]string, error)
}

// StaleAlerter receives the operator-facing signal when a unit's index
// write exhausts its retries.
type StaleAlerter interface {
	StaleIndexAlert(ctx context.Context, unitID string, cause error)
}

// Requeuer schedules a delayed reindex re-attempt for a unit left stale.
type Requeuer interface {
	EnqueueReindexUnit(unitID string, delay time.Duration) error
}

// IndexerOptions bounds the orchestrator's retrying and fan-out.
type IndexerOptions struct {
	MaxAttempts int           // write-step attempts per run
	HorizonDays int           // forward window of schedule documents
	FanoutRate  float64       // unit reindexes per second during fan-out
	BackoffBase time.Duration // base for 2^attempt backoff; defaults to 1s
}

// Indexer decides when to re-project and write, and survives transient
// store failures while doing so. A failed run never propagates into the
// business transaction that triggered it.
type Indexer struct {
	loader  AggregateLoader
	writer  DocumentWriter
	metrics *telemetry.Metrics
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	opts    IndexerOptions

	alerter StaleAlerter
	requeue Requeuer

	now func() time.Time
}

// requeueDelay spaces the automatic re-attempt of a stale unit far
// enough apart that a store outage is likely over.
const requeueDelay = 5 * time.Minute

func NewIndexer(loader AggregateLoader, writer DocumentWriter, metrics *telemetry.Metrics, opts IndexerOptions) *Indexer {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.HorizonDays < 1 {
		opts.HorizonDays = 180
	}
	if opts.FanoutRate <= 0 {
		opts.FanoutRate = 25
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "SearchStoreWrites",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Indexer{
		loader:  loader,
		writer:  writer,
		metrics: metrics,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(opts.FanoutRate), int(math.Ceil(opts.FanoutRate))),
		opts:    opts,
		now:     time.Now,
	}
}

// SetStaleAlerter wires the operator alert channel. Optional.
func (ix *Indexer) SetStaleAlerter(a StaleAlerter) { ix.alerter = a }

// SetRequeuer wires the delayed re-attempt queue. Optional; without it
// the manual-rebuild model from the critical log is the only recovery.
func (ix *Indexer) SetRequeuer(r Requeuer) { ix.requeue = r }

// window returns the maintained schedule horizon [today, today+N days).
func (ix *Indexer) window() (time.Time, time.Time) {
	y, m, d := ix.now().UTC().Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, ix.opts.HorizonDays)
}

// ReindexUnit reloads the unit's aggregate, projects it, and writes the
// unit document plus the horizon's schedule documents with bounded
// retry. A unit that is gone or no longer approved gets its documents
// removed instead.
func (ix *Indexer) ReindexUnit(ctx context.Context, unitID string) error {
	tracer := otel.Tracer("search-indexer")
	ctx, span := tracer.Start(ctx, "search.reindex_unit")
	defer span.End()
	span.SetAttributes(attribute.String("unit.id", unitID))

	started := ix.now()
	outcome := "succeeded"
	defer func() {
		ix.metrics.RecordReindex(ctx, outcome, ix.now().Sub(started).Seconds())
	}()

	from, to := ix.window()
	agg, err := ix.loader.LoadUnitAggregate(ctx, unitID, from, to)
	if err != nil {
		if isUnitGone(err) {
			span.SetAttributes(attribute.Bool("unit.removed", true))
			return ix.RemoveUnit(ctx, unitID)
		}
		outcome = "load_failed"
		return fmt.Errorf("failed to load aggregate for unit %s: %w", unitID, err)
	}

	if !agg.Unit.IsApproved {
		span.SetAttributes(attribute.Bool("unit.unapproved", true))
		return ix.RemoveUnit(ctx, unitID)
	}

	unitDoc, err := BuildUnitDocument(agg, ix.now())
	if err != nil {
		outcome = "projection_failed"
		return err
	}
	scheduleDocs, err := BuildScheduleDocuments(agg)
	if err != nil {
		outcome = "projection_failed"
		return err
	}
	span.SetAttributes(attribute.Int("schedule.count", len(scheduleDocs)))

	err = ix.attemptWithRetry(ctx, unitID, func(ctx context.Context) error {
		return ix.writer.WriteUnit(ctx, unitID, unitDoc, scheduleDocs)
	})
	if err != nil {
		outcome = "write_exhausted"
	}
	return err
}

// RemoveUnit deletes the unit's documents from the index.
func (ix *Indexer) RemoveUnit(ctx context.Context, unitID string) error {
	scheduleIDs, err := ix.loader.ListScheduleIDsForUnit(ctx, unitID)
	if err != nil {
		return fmt.Errorf("failed to list schedules for unit %s: %w", unitID, err)
	}

	return ix.attemptWithRetry(ctx, unitID, func(ctx context.Context) error {
		return ix.writer.DeleteUnit(ctx, unitID, scheduleIDs)
	})
}

// ReindexField re-runs projection for every unit carrying the changed
// dynamic field definition. The fan-out is rate limited so a
// catalog-wide change cannot starve the store; individual unit failures
// are logged and counted, not aborted on.
func (ix *Indexer) ReindexField(ctx context.Context, fieldID string) error {
	unitIDs, err := ix.loader.ListUnitIDsByField(ctx, fieldID)
	if err != nil {
		return fmt.Errorf("failed to list units for field %s: %w", fieldID, err)
	}
	return ix.reindexMany(ctx, unitIDs, "field "+fieldID)
}

// RebuildAll reindexes every approved unit. Used after schema changes
// and by the operator rebuild path.
func (ix *Indexer) RebuildAll(ctx context.Context) error {
	unitIDs, err := ix.loader.ListApprovedUnitIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list units for rebuild: %w", err)
	}
	return ix.reindexMany(ctx, unitIDs, "full rebuild")
}

func (ix *Indexer) reindexMany(ctx context.Context, unitIDs []string, scope string) error {
	var failed int
	for _, id := range unitIDs {
		if err := ix.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := ix.ReindexUnit(ctx, id); err != nil {
			failed++
		}
	}

	logger.Info("Fan-out reindex finished", "scope", scope, "units", len(unitIDs), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d unit reindexes failed during %s", failed, len(unitIDs), scope)
	}
	return nil
}

// attemptWithRetry drives the per-run write state machine. The write
// step goes through the circuit breaker, so during a store outage
// repeated signals fail fast instead of each burning a full backoff
// cycle. Cancellation during a backoff sleep aborts immediately.
func (ix *Indexer) attemptWithRetry(ctx context.Context, unitID string, write func(context.Context) error) error {
	state := RunPending
	var lastErr error

	for attempt := 1; attempt <= ix.opts.MaxAttempts; attempt++ {
		state = RunAttempting

		_, err := ix.breaker.Execute(func() (interface{}, error) {
			return nil, write(ctx)
		})
		if err == nil {
			state = RunSucceeded
			ix.metrics.RecordWrite(ctx, true)
			logger.Debug("Index write succeeded", "unit_id", unitID, "attempt", attempt, "state", state.String())
			return nil
		}

		lastErr = err
		ix.metrics.RecordWrite(ctx, false)

		if attempt == ix.opts.MaxAttempts {
			break
		}

		state = RunRetrying
		logger.Warn("Index write failed, retrying",
			"unit_id", unitID, "attempt", attempt, "state", state.String(), "error", err)

		backoff := time.Duration(math.Pow(2, float64(attempt))) * ix.opts.BackoffBase
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	state = RunExhaustedFailed
	ix.metrics.RecordStaleUnit(ctx)
	logger.Error("CRITICAL: search index is now stale for unit; manual rebuild required",
		"unit_id", unitID, "state", state.String(), "attempts", ix.opts.MaxAttempts, "error", lastErr)

	return fmt.Errorf("unit %s: %w: %v", unitID, ErrWriteExhausted, lastErr)
}

// OnUnitChanged is the business-edge signal for a unit or property
// mutation. It never returns an error: search staleness is degraded
// service, not a correctness failure of the booking/payment flow that
// triggered it. Exhausted units are alerted on and handed to the queue
// for a delayed re-attempt.
func (ix *Indexer) OnUnitChanged(ctx context.Context, unitID string) {
	ix.handleSignal(ctx, unitID, ix.ReindexUnit)
}

// OnAvailabilityChanged is the business-edge signal for a schedule
// mutation on one unit.
func (ix *Indexer) OnAvailabilityChanged(ctx context.Context, unitID string) {
	ix.handleSignal(ctx, unitID, ix.ReindexUnit)
}

// OnUnitRemoved is the business-edge signal for a unit that no longer
// qualifies for the index.
func (ix *Indexer) OnUnitRemoved(ctx context.Context, unitID string) {
	ix.handleSignal(ctx, unitID, ix.RemoveUnit)
}

// OnFieldChanged is the business-edge signal for a dynamic field
// definition change affecting many units.
func (ix *Indexer) OnFieldChanged(ctx context.Context, fieldID string) {
	if err := ix.ReindexField(ctx, fieldID); err != nil {
		logger.Error("Field fan-out reindex incomplete", "field_id", fieldID, "error", err)
	}
}

func (ix *Indexer) handleSignal(ctx context.Context, unitID string, run func(context.Context, string) error) {
	err := run(ctx, unitID)
	if err == nil {
		return
	}

	if !errors.Is(err, ErrWriteExhausted) {
		logger.Error("Reindex signal failed", "unit_id", unitID, "error", err)
		return
	}

	if ix.alerter != nil {
		ix.alerter.StaleIndexAlert(ctx, unitID, err)
	}
	if ix.requeue != nil {
		if qerr := ix.requeue.EnqueueReindexUnit(unitID, requeueDelay); qerr != nil {
			logger.Error("Failed to enqueue delayed reindex; unit stays stale until manual rebuild",
				"unit_id", unitID, "error", qerr)
		}
	}
}

func isUnitGone(err error) bool {
	return errors.Is(err, ErrUnitNotFound)
}
