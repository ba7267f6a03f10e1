package optimize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/marmos91/imgforge/internal/logger"
	"github.com/marmos91/imgforge/internal/telemetry"
	"github.com/marmos91/imgforge/pkg/journal"
	"github.com/marmos91/imgforge/pkg/sse"
	"github.com/marmos91/imgforge/pkg/transform"
	"github.com/marmos91/imgforge/pkg/workerpool"
)

// errContextMissing marks the fatal case where a scheduled task finds no
// context for its id.
var errContextMissing = errors.New("request context missing for scheduled task")

// runSingle is the asynchronous arm for one accepted file: read, optimize,
// upload, fan out. Every branch ends in exactly one terminal SSE event and
// one callback round.
func (o *Orchestrator) runSingle(ctx context.Context, id string) {
	ctx, span := telemetry.StartOptimizeSpan(ctx, telemetry.SpanOptimizeRun, id)
	defer span.End()

	start := time.Now()

	params, ok := o.deps.Registry.Get(id)
	if !ok || len(params.Files) == 0 {
		telemetry.RecordError(ctx, errContextMissing)
		logger.Error("fatal: no context for scheduled optimization",
			logger.KeyOptimizationID, id)
		o.failSingle(ctx, id, Params{}, errContextMissing)
		return
	}

	file := params.Files[0]
	newFilePath := params.NewFilePaths[0]
	format := string(params.Options.Format)
	if format == "" {
		format = string(transform.FormatJPEG)
	}

	defer o.removeTemp(file.TempPath, id)

	data, err := os.ReadFile(file.TempPath)
	if err != nil {
		telemetry.RecordError(ctx, err)
		o.deps.Pipeline.RecordOptimization(format, 0, 0, time.Since(start), err)
		o.failSingle(ctx, id, params, fmt.Errorf("cannot read upload: %w", err))
		return
	}

	future, err := o.deps.Pool.Submit(workerpool.Task{
		Bytes:        data,
		Options:      params.Options,
		OriginalName: file.OriginalName,
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		o.deps.Pipeline.RecordOptimization(format, len(data), 0, time.Since(start), err)
		o.failSingle(ctx, id, params, fmt.Errorf("cannot schedule task: %w", err))
		return
	}

	o.publish(sse.Progress(id, 10, "optimization queued"))

	result, err := future.Wait(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		o.failSingle(ctx, id, params, err)
		return
	}
	if !result.Success {
		o.deps.Pipeline.RecordOptimization(format, result.OriginalSize, 0, time.Since(start), result.Err)
		o.failSingle(ctx, id, params, result.Err)
		return
	}

	o.publish(sse.Progress(id, 70, "optimization complete, uploading"))

	uploadCtx, uploadSpan := telemetry.StartStorageSpan(ctx, telemetry.SpanStorageUpload, newFilePath)
	err = o.deps.Sink.Put(uploadCtx, newFilePath, result.Bytes, "image/"+format)
	uploadSpan.End()
	if err != nil {
		telemetry.RecordError(ctx, err)
		o.deps.Pipeline.RecordOptimization(format, result.OriginalSize, 0, time.Since(start), err)
		o.failSingle(ctx, id, params, fmt.Errorf("upload failed: %w", err))
		return
	}

	o.deps.Pipeline.RecordOptimization(format, result.OriginalSize, result.OptimizedSize, time.Since(start), nil)

	if err := o.deps.Journal.RecordCompleted(ctx, id); err != nil {
		logger.Warn("cannot journal completion",
			logger.KeyOptimizationID, id, logger.KeyError, err)
	}

	payload := CompletionPayload{
		OptimizationID: id,
		Status:         StatusSuccess,
		DownloadURL:    joinURL(o.cfg.BaseURL, newFilePath),
		NewFilePath:    newFilePath,
		OriginalSize:   result.OriginalSize,
		OptimizedSize:  result.OptimizedSize,
	}

	o.publish(sse.Complete(id, payload))
	o.deps.Notifier.Notify(ctx, params.Callbacks, payload)
	o.deps.Events.RecordCallback(StatusSuccess)

	logger.Info("optimization pipeline finished",
		logger.KeyOptimizationID, id,
		logger.KeyNewFilePath, newFilePath,
		logger.KeyOriginalSize, result.OriginalSize,
		logger.KeyOptimizedSize, result.OptimizedSize,
		logger.KeyDurationMs, logger.Duration(start))
}

// failSingle publishes the terminal error event and fires error callbacks.
func (o *Orchestrator) failSingle(ctx context.Context, id string, params Params, cause error) {
	msg := "optimization failed"
	if cause != nil {
		msg = cause.Error()
	}

	if err := o.deps.Journal.RecordFailed(ctx, id, cause); err != nil && !errors.Is(err, journal.ErrNotFound) {
		logger.Warn("cannot journal failure",
			logger.KeyOptimizationID, id, logger.KeyError, err)
	}

	newFilePath := ""
	if len(params.NewFilePaths) > 0 {
		newFilePath = params.NewFilePaths[0]
	}

	o.publish(sse.Error(id, msg))

	payload := CompletionPayload{
		OptimizationID: id,
		Status:         StatusError,
		NewFilePath:    newFilePath,
		Error:          msg,
	}
	o.deps.Notifier.Notify(ctx, params.Callbacks, payload)
	o.deps.Events.RecordCallback(StatusError)

	logger.Warn("optimization pipeline failed",
		logger.KeyOptimizationID, id, logger.KeyError, cause)
}

// runBatch drives N independent per-file pipelines under one id: one
// SubmitMany, per-index upload keys, a single consolidated callback.
func (o *Orchestrator) runBatch(ctx context.Context, id string) {
	ctx, span := telemetry.StartOptimizeSpan(ctx, telemetry.SpanOptimizeRun, id)
	defer span.End()

	start := time.Now()

	params, ok := o.deps.Registry.Get(id)
	if !ok || len(params.Files) == 0 {
		telemetry.RecordError(ctx, errContextMissing)
		logger.Error("fatal: no context for scheduled batch",
			logger.KeyOptimizationID, id)
		o.publish(sse.Error(id, errContextMissing.Error()))
		return
	}

	format := string(params.Options.Format)
	if format == "" {
		format = string(transform.FormatJPEG)
	}

	defer func() {
		for _, f := range params.Files {
			o.removeTemp(f.TempPath, id)
		}
	}()

	fileResults := make([]BatchFileResult, len(params.Files))
	tasks := make([]workerpool.Task, 0, len(params.Files))
	taskIndex := make([]int, 0, len(params.Files))

	for i, f := range params.Files {
		fileResults[i] = BatchFileResult{
			FileName:    f.OriginalName,
			NewFilePath: params.NewFilePaths[i],
		}

		data, err := os.ReadFile(f.TempPath)
		if err != nil {
			fileResults[i].Error = fmt.Sprintf("cannot read upload: %v", err)
			o.publish(sse.FileProgress(id, 0, "read failed", f.OriginalName, i))
			continue
		}

		tasks = append(tasks, workerpool.Task{
			Bytes:        data,
			Options:      params.Options,
			OriginalName: f.OriginalName,
		})
		taskIndex = append(taskIndex, i)
	}

	if len(tasks) > 0 {
		batch, err := o.deps.Pool.SubmitMany(tasks)
		if err != nil {
			for _, i := range taskIndex {
				fileResults[i].Error = fmt.Sprintf("cannot schedule task: %v", err)
			}
		} else {
			o.publish(sse.Progress(id, 10, "batch queued"))

			results, err := batch.Wait(ctx)
			if err != nil {
				for _, i := range taskIndex {
					fileResults[i].Error = err.Error()
				}
			} else {
				for pos, res := range results {
					i := taskIndex[pos]
					o.finishBatchFile(ctx, id, i, res, format, &fileResults[i])
				}
			}
		}
	}

	successful := 0
	for _, r := range fileResults {
		if r.Success {
			successful++
		}
	}

	status := StatusError
	switch {
	case successful == len(fileResults):
		status = StatusSuccess
	case successful > 0:
		status = StatusPartial
	}

	if status == StatusError {
		_ = o.deps.Journal.RecordFailed(ctx, id, fmt.Errorf("all %d files failed", len(fileResults)))
	} else if err := o.deps.Journal.RecordCompleted(ctx, id); err != nil {
		logger.Warn("cannot journal batch completion",
			logger.KeyOptimizationID, id, logger.KeyError, err)
	}

	payload := BatchCompletionPayload{
		OptimizationID:  id,
		Status:          status,
		TotalFiles:      len(fileResults),
		SuccessfulFiles: successful,
		Results:         fileResults,
	}

	if status == StatusError {
		o.publish(sse.Error(id, "batch optimization failed"))
	} else {
		o.publish(sse.Complete(id, payload))
	}

	o.deps.Notifier.Notify(ctx, params.Callbacks, payload)
	o.deps.Events.RecordCallback(status)

	logger.Info("batch pipeline finished",
		logger.KeyOptimizationID, id,
		logger.KeyBatchSize, len(fileResults),
		"successful", successful,
		logger.KeyDurationMs, logger.Duration(start))
}

// finishBatchFile uploads one successful batch result under its per-index
// key and fills in the per-file outcome.
func (o *Orchestrator) finishBatchFile(ctx context.Context, id string, index int, res workerpool.Result, format string, out *BatchFileResult) {
	out.OriginalSize = res.OriginalSize

	if !res.Success {
		if res.Err != nil {
			out.Error = res.Err.Error()
		} else {
			out.Error = "optimization failed"
		}
		o.deps.Pipeline.RecordOptimization(format, res.OriginalSize, 0, 0, res.Err)
		o.publish(sse.FileProgress(id, 100, "failed", res.OriginalName, index))
		return
	}

	key := batchKey(id, index)
	uploadCtx, uploadSpan := telemetry.StartStorageSpan(ctx, telemetry.SpanStorageUpload, key)
	err := o.deps.Sink.Put(uploadCtx, key, res.Bytes, "image/"+format)
	uploadSpan.End()
	if err != nil {
		out.Error = fmt.Sprintf("upload failed: %v", err)
		o.deps.Pipeline.RecordOptimization(format, res.OriginalSize, 0, 0, err)
		o.publish(sse.FileProgress(id, 100, "upload failed", res.OriginalName, index))
		return
	}

	out.Success = true
	out.OptimizedSize = res.OptimizedSize
	out.DownloadURL = joinURL(o.cfg.BaseURL, key)
	o.deps.Pipeline.RecordOptimization(format, res.OriginalSize, res.OptimizedSize, 0, nil)
	o.publish(sse.FileProgress(id, 100, "uploaded", res.OriginalName, index))
}

func (o *Orchestrator) publish(ev sse.Event) {
	o.deps.Broker.Publish(ev)
	o.deps.Events.RecordPublished(string(ev.Type))
}

func (o *Orchestrator) removeTemp(path, id string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("cannot remove temp upload",
			logger.KeyOptimizationID, id, "path", path, logger.KeyError, err)
	}
}
