package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/content-agent/internal/types"
)

// UpsertRun writes the run's current state.
func (db *DB) UpsertRun(ctx context.Context, run *types.Run) error {
	var errStage, errKind, errMessage *string
	if run.Error != nil {
		stage, kind, msg := run.Error.Stage, string(run.Error.Kind), run.Error.Message
		errStage, errKind, errMessage = &stage, &kind, &msg
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, status, trigger_kind, stage_index, error_stage, error_kind, error_message, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			status = $2, stage_index = $4,
			error_stage = $5, error_kind = $6, error_message = $7,
			ended_at = $9`,
		run.ID, string(run.Status), string(run.TriggerKind), run.StageIndex,
		errStage, errKind, errMessage, run.StartedAt, run.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}
	return nil
}

// SaveArtifact stores one stage artifact as JSON.
func (db *DB) SaveArtifact(ctx context.Context, runID uuid.UUID, stage string, content any) error {
	jsonBytes, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO artifacts (run_id, stage, content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (run_id, stage) DO UPDATE SET content = $3, created_at = NOW()`,
		runID, stage, jsonBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", stage, err)
	}
	return nil
}

// UpsertScheduledItem writes a scheduled item's current state.
func (db *DB) UpsertScheduledItem(ctx context.Context, item *types.ScheduledItem) error {
	payload, err := json.Marshal(item.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal item payload: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO scheduled_items (id, run_id, payload, scheduled_time, status, platforms, attempts, last_error, published_ref, enqueued_at, dispatched_at, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
			scheduled_time = $4, status = $5, attempts = $7,
			last_error = $8, published_ref = $9,
			dispatched_at = $11, published_at = $12`,
		item.ID, item.RunID, payload, item.ScheduledTime, string(item.Status),
		item.PlatformTargets, item.Attempts, item.LastError, item.PublishedRef,
		item.EnqueuedAt, item.DispatchedAt, item.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert scheduled item: %w", err)
	}
	return nil
}
