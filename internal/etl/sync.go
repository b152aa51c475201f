package etl

import (
	"context"
	"fmt"
	"time"
)

// ── LoadJob ────────────────────────────────────────────────
// Orchestrates: source.Read → transform chain → destination.Write.

// LoadJob holds the configuration for a single dataset load.
type LoadJob struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	SourceType    string            `json:"sourceType"`
	SourceCfg     SourceConfig      `json:"sourceConfig"`
	Transforms    []TransformConfig `json:"transforms,omitempty"`
	Collection    string            `json:"collection"`
	Mode          SyncMode          `json:"mode"`
	DedupeKey     string            `json:"dedupeKey,omitempty"`
	TriggerType   string            `json:"triggerType"`   // "manual" | "schedule" | "file_watch"
	TriggerConfig string            `json:"triggerConfig"` // cron expression or watch path
	Enabled       bool              `json:"enabled"`
	LastRunAt     time.Time         `json:"lastRunAt"`
	LastStatus    string            `json:"lastStatus"` // "success" | "error" | "running" | ""
	LastError     string            `json:"lastError"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// SyncResult is the outcome of running a load job.
type SyncResult struct {
	JobID       string        `json:"jobId"`
	Status      string        `json:"status"` // "success" | "error"
	RowsRead    int           `json:"rowsRead"`
	RowsWritten int           `json:"rowsWritten"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// RunLog is a historical record of one load run.
type RunLog struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	Error       string    `json:"error,omitempty"`
}

// ── Engine ─────────────────────────────────────────────────
// Records flow through in bounded batches; the full dataset is never
// held in memory at once.

// writeBatchSize is how many records accumulate before a destination write.
const writeBatchSize = 500

// Engine runs load jobs using the registered sources and a destination.
type Engine struct {
	Dest Destination
}

// RunSync executes a load job end-to-end.
func (e *Engine) RunSync(ctx context.Context, job *LoadJob) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{JobID: job.ID}

	fail := func(err error) (*SyncResult, error) {
		result.Status = "error"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result, err
	}

	// 1. Resolve source from registry.
	source, err := GetSource(job.SourceType)
	if err != nil {
		return fail(err)
	}

	// 2. Discover schema.
	schema, err := source.Discover(ctx, job.SourceCfg)
	if err != nil {
		return fail(fmt.Errorf("discover: %w", err))
	}

	// 3. Stream records from source through the transform chain into
	// batched destination writes. The first write honors the job's
	// mode; later writes always append so a replace does not wipe its
	// own earlier batches.
	recCh, errCh := source.Read(ctx, job.SourceCfg)
	transformers := BuildTransformers(job.Transforms, job.DedupeKey)

	mode := job.Mode
	if mode == "" {
		mode = SyncReplace
	}

	batch := make([]Record, 0, writeBatchSize)
	flush := func() error {
		if len(batch) == 0 && mode != SyncReplace {
			return nil
		}
		written, err := e.Dest.Write(ctx, job.Collection, schema, batch, mode)
		result.RowsWritten += written
		mode = SyncAppend
		batch = batch[:0]
		return err
	}

	for rec := range recCh {
		result.RowsRead++
		transformed, keep := ApplyTransformers(rec, transformers)
		if !keep {
			continue
		}
		batch = append(batch, transformed)
		if len(batch) >= writeBatchSize {
			if err := flush(); err != nil {
				return fail(fmt.Errorf("write: %w", err))
			}
		}
	}

	// Check for source errors before the final flush: a failed read
	// must not be mistaken for a complete load, though batches already
	// written stay written.
	if err := <-errCh; err != nil {
		result.Status = "error"
		result.Error = fmt.Sprintf("read: %s", err)
		result.Duration = time.Since(start)
		return result, fmt.Errorf("read: %w", err)
	}

	if err := flush(); err != nil {
		return fail(fmt.Errorf("write: %w", err))
	}

	result.Status = "success"
	result.Duration = time.Since(start)
	return result, nil
}

// Preview executes only the source read phase and returns up to maxRows records.
func (e *Engine) Preview(ctx context.Context, sourceType string, cfg SourceConfig, maxRows int) ([]Record, *Schema, error) {
	source, err := GetSource(sourceType)
	if err != nil {
		return nil, nil, err
	}

	schema, err := source.Discover(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("discover: %w", err)
	}

	previewCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	recCh, errCh := source.Read(previewCtx, cfg)

	var records []Record
	for rec := range recCh {
		records = append(records, rec)
		if len(records) >= maxRows {
			// Cancelling makes the source release its file handle.
			cancel()
			break
		}
	}

	// Drain remaining and check for errors.
	go func() {
		for range recCh {
		}
	}()
	if err := <-errCh; err != nil {
		return records, schema, err
	}

	return records, schema, nil
}
