package search

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DocumentWriter is the store-write surface the orchestrator retries
// over. Implementations must be safe for concurrent use.
type DocumentWriter interface {
	// WriteUnit replaces the unit document and upserts the given
	// daily-schedule documents in one batch.
	WriteUnit(ctx context.Context, unitID string, unitDoc map[string]interface{}, schedules []ScheduleDocument) error
	// DeleteUnit removes the unit document and the given schedule
	// documents.
	DeleteUnit(ctx context.Context, unitID string, scheduleIDs []string) error
	// DeleteScheduleKeys removes schedule documents by id.
	DeleteScheduleKeys(ctx context.Context, scheduleIDs []string) error
}

// deleteChunkSize bounds a single DEL command's key count.
const deleteChunkSize = 512

type redisWriter struct {
	conn *Manager
}

// NewRedisWriter returns a DocumentWriter issuing pipelined commands
// through the connection manager.
func NewRedisWriter(conn *Manager) DocumentWriter {
	return &redisWriter{conn: conn}
}

func (w *redisWriter) WriteUnit(ctx context.Context, unitID string, unitDoc map[string]interface{}, schedules []ScheduleDocument) error {
	rdb, err := w.conn.Database(ctx)
	if err != nil {
		return err
	}

	// DEL before HSET: both document kinds are full replacements, and a
	// plain HSET would leave dropped optional fields behind.
	_, err = rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		unitKey := UnitKey(unitID)
		pipe.Del(ctx, unitKey)
		pipe.HSet(ctx, unitKey, unitDoc)
		for _, sd := range schedules {
			key := ScheduleKey(sd.ScheduleID)
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, sd.Fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write documents for unit %s: %w", unitID, err)
	}
	return nil
}

func (w *redisWriter) DeleteUnit(ctx context.Context, unitID string, scheduleIDs []string) error {
	rdb, err := w.conn.Database(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(scheduleIDs)+1)
	keys = append(keys, UnitKey(unitID))
	for _, id := range scheduleIDs {
		keys = append(keys, ScheduleKey(id))
	}

	if err := deleteKeys(ctx, rdb, keys); err != nil {
		return fmt.Errorf("failed to delete documents for unit %s: %w", unitID, err)
	}
	return nil
}

func (w *redisWriter) DeleteScheduleKeys(ctx context.Context, scheduleIDs []string) error {
	if len(scheduleIDs) == 0 {
		return nil
	}

	rdb, err := w.conn.Database(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(scheduleIDs))
	for _, id := range scheduleIDs {
		keys = append(keys, ScheduleKey(id))
	}
	return deleteKeys(ctx, rdb, keys)
}

func deleteKeys(ctx context.Context, rdb *redis.Client, keys []string) error {
	for len(keys) > 0 {
		n := len(keys)
		if n > deleteChunkSize {
			n = deleteChunkSize
		}
		if err := rdb.Del(ctx, keys[:n]...).Err(); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return nil
}
