// Package optimize is the orchestrator: it accepts uploads, mints the
// destination key, persists the request context, and drives the
// asynchronous optimize-upload-notify pipeline.
//
// The dependency graph is one-way: the orchestrator depends on the
// registry, pool, broker, notifier and sink; none of them know about it.
package optimize

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/marmos91/imgforge/internal/logger"
	"github.com/marmos91/imgforge/pkg/blob"
	"github.com/marmos91/imgforge/pkg/journal"
	"github.com/marmos91/imgforge/pkg/metrics"
	"github.com/marmos91/imgforge/pkg/notify"
	"github.com/marmos91/imgforge/pkg/pathmint"
	"github.com/marmos91/imgforge/pkg/reqcontext"
	"github.com/marmos91/imgforge/pkg/sse"
	"github.com/marmos91/imgforge/pkg/transform"
	"github.com/marmos91/imgforge/pkg/workerpool"
)

var (
	// ErrBusy indicates the worker pool queue passed the high-water mark;
	// the HTTP layer maps it to 503.
	ErrBusy = errors.New("optimization queue is saturated")

	// ErrDuplicateID indicates the minted optimization id collided with a
	// live context. Practically unreachable with UUIDv4.
	ErrDuplicateID = errors.New("optimization id collision")
)

// MaxBatchFiles bounds one batch request.
const MaxBatchFiles = 10

// Config tunes the orchestrator.
type Config struct {
	// BaseURL is the CDN/origin prefix for download URLs.
	BaseURL string

	// QueueHighWater rejects accepts once the pool queue reaches this
	// depth. Zero disables the check.
	QueueHighWater int
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Registry *reqcontext.Registry[Params]
	Pool     *workerpool.Pool
	Broker   *sse.Broker
	Notifier *notify.Notifier
	Sink     blob.Sink
	Minter   *pathmint.Minter
	Journal  *journal.Journal // optional
	Pipeline *metrics.PipelineMetrics
	Events   *metrics.EventMetrics
}

// Orchestrator accepts optimization requests and runs their pipelines.
type Orchestrator struct {
	cfg  Config
	deps Deps

	newID func() string
}

// New creates an orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg,
		deps:  deps,
		newID: uuid.NewString,
	}
}

// AcceptSingle validates the request, commits its context, and schedules
// the pipeline. The returned response is safe to send immediately: the
// context (including the minted newFilePath) is persisted before return.
func (o *Orchestrator) AcceptSingle(ctx context.Context, file Upload, callbacks []notify.Callback, opts transform.Options) (*Response, error) {
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	if err := o.checkBackpressure(); err != nil {
		return nil, err
	}

	format := string(opts.Format)
	if format == "" {
		format = string(transform.FormatJPEG)
	}

	newFilePath := o.deps.Minter.Mint(format)
	id := o.newID()
	if o.deps.Registry.Has(id) {
		return nil, ErrDuplicateID
	}

	o.deps.Registry.Set(id, Params{
		Files:        []Upload{file},
		Options:      opts,
		Callbacks:    callbacks,
		NewFilePaths: []string{newFilePath},
	})

	if err := o.deps.Journal.RecordAccepted(ctx, id, newFilePath); err != nil {
		logger.Warn("cannot journal accepted job",
			logger.KeyOptimizationID, id, logger.KeyError, err)
	}

	logger.Info("optimization accepted",
		logger.KeyOptimizationID, id,
		logger.KeyFilename, file.OriginalName,
		logger.KeyFormat, format,
		logger.KeyOriginalSize, file.Size,
		logger.KeyNewFilePath, newFilePath)

	go o.runSingle(context.WithoutCancel(ctx), id)

	return &Response{
		Message:            "Image optimization scheduled",
		OriginalSize:       file.Size,
		Data:               newFilePath,
		DownloadURL:        joinURL(o.cfg.BaseURL, newFilePath),
		CallbacksScheduled: len(callbacks),
		OptimizationID:     id,
	}, nil
}

// AcceptBatch is the many-file variant: one context, one optimization id,
// one path minted per file. Uploaded artifacts use per-index keys
// "{id}_{index}"; the consolidated callback fires once at the end.
func (o *Orchestrator) AcceptBatch(ctx context.Context, files []Upload, callbacks []notify.Callback, opts transform.Options) (*BatchResponse, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", ErrInvalidOptions)
	}
	if len(files) > MaxBatchFiles {
		return nil, fmt.Errorf("%w: at most %d files per batch", ErrInvalidOptions, MaxBatchFiles)
	}
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	if err := o.checkBackpressure(); err != nil {
		return nil, err
	}

	format := string(opts.Format)
	if format == "" {
		format = string(transform.FormatJPEG)
	}

	id := o.newID()
	if o.deps.Registry.Has(id) {
		return nil, ErrDuplicateID
	}

	newFilePaths := make([]string, len(files))
	results := make([]BatchAccepted, len(files))
	for i, f := range files {
		newFilePaths[i] = o.deps.Minter.Mint(format)
		key := batchKey(id, i)
		results[i] = BatchAccepted{
			FileName:    f.OriginalName,
			Data:        newFilePaths[i],
			DownloadURL: joinURL(o.cfg.BaseURL, key),
		}
	}

	o.deps.Registry.Set(id, Params{
		Files:        files,
		Options:      opts,
		Callbacks:    callbacks,
		NewFilePaths: newFilePaths,
		Batch:        true,
	})

	if err := o.deps.Journal.RecordAccepted(ctx, id, batchKey(id, 0)); err != nil {
		logger.Warn("cannot journal accepted batch",
			logger.KeyOptimizationID, id, logger.KeyError, err)
	}

	logger.Info("batch optimization accepted",
		logger.KeyOptimizationID, id,
		logger.KeyBatchSize, len(files),
		logger.KeyFormat, format)

	go o.runBatch(context.WithoutCancel(ctx), id)

	return &BatchResponse{
		Message:            "Batch optimization scheduled",
		Count:              len(files),
		CallbacksScheduled: len(callbacks),
		OptimizationID:     id,
		Results:            results,
	}, nil
}

func (o *Orchestrator) checkBackpressure() error {
	if o.cfg.QueueHighWater <= 0 {
		return nil
	}
	depth := o.deps.Pool.QueueDepth()
	if depth >= o.cfg.QueueHighWater {
		o.deps.Pipeline.RecordRejection("queue_full")
		logger.Warn("rejecting accept, queue past high-water mark",
			logger.KeyQueueDepth, depth)
		return ErrBusy
	}
	return nil
}

// batchKey is the upload key for one file of a batch.
func batchKey(id string, index int) string {
	return fmt.Sprintf("%s_%d", id, index)
}
