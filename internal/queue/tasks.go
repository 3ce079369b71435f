package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"booking-search-platform/internal/logger"
	"booking-search-platform/internal/search"
)

const (
	TaskReindexUnit  = "search:reindex_unit"
	TaskReindexField = "search:reindex_field"
	TaskRemoveUnit   = "search:remove_unit"
)

type ReindexUnitPayload struct {
	UnitID string `json:"unit_id"`
}

type ReindexFieldPayload struct {
	FieldID string `json:"field_id"`
}

type RemoveUnitPayload struct {
	UnitID string `json:"unit_id"`
}

// Task creators
func NewReindexUnitTask(unitID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReindexUnitPayload{UnitID: unitID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskReindexUnit,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("default"),
	), nil
}

func NewReindexFieldTask(fieldID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReindexFieldPayload{FieldID: fieldID})
	if err != nil {
		return nil, err
	}

	// Field fan-outs touch many units; keep them off the default queue
	// so single-unit updates stay responsive.
	return asynq.NewTask(
		TaskReindexField,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("low"),
	), nil
}

func NewRemoveUnitTask(unitID string) (*asynq.Task, error) {
	payload, err := json.Marshal(RemoveUnitPayload{UnitID: unitID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskRemoveUnit,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// Client wraps the asynq producer side. It satisfies the orchestrator's
// Requeuer interface for delayed re-attempts of stale units.
type Client struct {
	inner *asynq.Client
}

func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{inner: asynq.NewClient(opt)}
}

func (c *Client) Close() error {
	return c.inner.Close()
}

// EnqueueReindexUnit schedules a unit reindex after the given delay.
func (c *Client) EnqueueReindexUnit(unitID string, delay time.Duration) error {
	task, err := NewReindexUnitTask(unitID)
	if err != nil {
		return err
	}
	info, err := c.inner.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return fmt.Errorf("failed to enqueue reindex for unit %s: %w", unitID, err)
	}
	logger.Debug("Enqueued delayed reindex", "unit_id", unitID, "task_id", info.ID, "delay", delay.String())
	return nil
}

// EnqueueReindexField schedules a fan-out reindex for a changed field
// definition.
func (c *Client) EnqueueReindexField(fieldID string) error {
	task, err := NewReindexFieldTask(fieldID)
	if err != nil {
		return err
	}
	if _, err := c.inner.Enqueue(task); err != nil {
		return fmt.Errorf("failed to enqueue field reindex %s: %w", fieldID, err)
	}
	return nil
}

// EnqueueRemoveUnit schedules removal of a unit's documents.
func (c *Client) EnqueueRemoveUnit(unitID string) error {
	task, err := NewRemoveUnitTask(unitID)
	if err != nil {
		return err
	}
	if _, err := c.inner.Enqueue(task); err != nil {
		return fmt.Errorf("failed to enqueue removal for unit %s: %w", unitID, err)
	}
	return nil
}

// Task handlers
type TaskProcessor struct {
	indexer *search.Indexer
}

func NewTaskProcessor(indexer *search.Indexer) *TaskProcessor {
	return &TaskProcessor{indexer: indexer}
}

func (p *TaskProcessor) ProcessReindexUnit(ctx context.Context, t *asynq.Task) error {
	var payload ReindexUnitPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing reindex task", "unit_id", payload.UnitID)
	return p.indexer.ReindexUnit(ctx, payload.UnitID)
}

func (p *TaskProcessor) ProcessReindexField(ctx context.Context, t *asynq.Task) error {
	var payload ReindexFieldPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing field fan-out task", "field_id", payload.FieldID)
	return p.indexer.ReindexField(ctx, payload.FieldID)
}

func (p *TaskProcessor) ProcessRemoveUnit(ctx context.Context, t *asynq.Task) error {
	var payload RemoveUnitPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing removal task", "unit_id", payload.UnitID)
	return p.indexer.RemoveUnit(ctx, payload.UnitID)
}
