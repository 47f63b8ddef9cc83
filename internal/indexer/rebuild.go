// Package indexer runs full rebuilds of the story index: fetch every
// qualifying story, transform it, wipe the index and load the new records.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BRO3886/story-indexer/internal/lock"
	"github.com/BRO3886/story-indexer/internal/search"
	"github.com/BRO3886/story-indexer/internal/source"
	"github.com/BRO3886/story-indexer/internal/transform"
	"github.com/BRO3886/story-indexer/internal/types"
	"github.com/eapache/go-resiliency/retrier"
	"github.com/google/uuid"
)

var (
	ErrRebuildInProgress = errors.New("a rebuild is already in progress")
	ErrEmptyRebuild      = errors.New("no records to index, refusing to wipe the index")
	ErrIndexInconsistent = errors.New("index may be empty or incomplete")
)

const (
	defaultLockName = "story-rebuild"
	defaultLockTTL  = 15 * time.Minute
)

type Config struct {
	Source      source.Source
	Sink        search.Sink
	Filter      source.Filter
	Transformer *transform.Transformer
	Logger      *slog.Logger

	// Lock, when set, keeps two rebuilds from wiping the same index at once.
	Lock     lock.Locker
	LockName string
	LockTTL  time.Duration

	// Reporter, when set, receives the report of every run.
	Reporter Reporter

	// AllowEmpty lets a run that produced no records wipe the index.
	AllowEmpty bool

	CommitRetries int
	CommitBackoff time.Duration
}

type Rebuilder struct {
	source      source.Source
	sink        search.Sink
	filter      source.Filter
	transformer *transform.Transformer
	logger      *slog.Logger
	lock        lock.Locker
	lockName    string
	lockTTL     time.Duration
	reporter    Reporter
	allowEmpty  bool
	retrier     *retrier.Retrier
}

func New(c Config) *Rebuilder {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	transformer := c.Transformer
	if transformer == nil {
		transformer = transform.New(logger, transform.Options{})
	}
	lockName := c.LockName
	if lockName == "" {
		lockName = defaultLockName
	}
	lockTTL := c.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	retries := c.CommitRetries
	if retries < 0 {
		retries = 0
	}

	return &Rebuilder{
		source:      c.Source,
		sink:        c.Sink,
		filter:      c.Filter,
		transformer: transformer,
		logger:      logger.With("component", "indexer"),
		lock:        c.Lock,
		lockName:    lockName,
		lockTTL:     lockTTL,
		reporter:    c.Reporter,
		allowEmpty:  c.AllowEmpty,
		retrier:     retrier.New(retrier.ExponentialBackoff(retries, c.CommitBackoff), nil),
	}
}

// Run performs one full rebuild. The returned report is never nil, also
// when err is not.
func (r *Rebuilder) Run(ctx context.Context, trigger string) (*types.RunReport, error) {
	report := &types.RunReport{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
	logger := r.logger.With("run_id", report.RunID)
	logger.Info("rebuild started", "trigger", trigger)

	err := r.run(ctx, logger, report)

	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.Error = err.Error()
		logger.Error("rebuild failed", "error", err, "duration", report.FinishedAt.Sub(report.StartedAt))
	} else {
		logger.Info("rebuild completed",
			"fetched", report.Fetched,
			"indexed", report.Indexed,
			"failures", len(report.Failures),
			"duration", report.FinishedAt.Sub(report.StartedAt),
		)
	}

	if r.reporter != nil {
		if perr := r.reporter.Report(context.WithoutCancel(ctx), *report); perr != nil {
			logger.Warn("failed to publish run report", "error", perr)
		}
	}

	return report, err
}

func (r *Rebuilder) run(ctx context.Context, logger *slog.Logger, report *types.RunReport) error {
	if r.lock != nil {
		ok, err := r.lock.Acquire(ctx, r.lockName, r.lockTTL)
		if err != nil {
			return fmt.Errorf("acquire rebuild lock: %w", err)
		}
		if !ok {
			return ErrRebuildInProgress
		}
		defer func() {
			if err := r.lock.Release(context.WithoutCancel(ctx), r.lockName); err != nil {
				logger.Warn("failed to release rebuild lock", "error", err)
			}
		}()
	}

	cursor, err := r.source.Fetch(ctx, r.filter)
	if err != nil {
		return fmt.Errorf("fetch stories: %w", err)
	}
	defer cursor.Close(context.WithoutCancel(ctx))

	res, err := r.transformer.Batch(ctx, cursor)
	if err != nil {
		return fmt.Errorf("transform stories: %w", err)
	}

	report.Fetched = res.Fetched
	for _, f := range res.Failures {
		report.Failures = append(report.Failures, types.Failure{ID: f.ID, Cause: f.Err.Error()})
	}
	if ferr := res.Err(); ferr != nil {
		logger.Warn("skipped stories", "count", len(res.Failures), "error", ferr)
	}

	if len(res.Records) == 0 && !r.allowEmpty {
		return ErrEmptyRebuild
	}

	logger.Info("documents to be indexed", "count", len(res.Records))

	// From here on a failure can leave the index empty.
	if err := r.sink.DeleteAll(ctx); err != nil {
		return r.inconsistent(logger, "delete", err)
	}
	if err := r.commit(ctx); err != nil {
		return r.inconsistent(logger, "commit delete", err)
	}
	logger.Info("deleted all indexed documents")

	if err := r.sink.Add(ctx, res.Records); err != nil {
		return r.inconsistent(logger, "add", err)
	}
	if err := r.commit(ctx); err != nil {
		return r.inconsistent(logger, "commit add", err)
	}
	report.Indexed = len(res.Records)

	if n, err := r.sink.Count(ctx); err != nil {
		logger.Warn("failed to count indexed documents", "error", err)
	} else if n != report.Indexed {
		logger.Warn("index count differs from records sent", "count", n, "indexed", report.Indexed)
	}

	return nil
}

func (r *Rebuilder) commit(ctx context.Context) error {
	return r.retrier.RunCtx(ctx, func(ctx context.Context) error {
		return r.sink.Commit(ctx)
	})
}

func (r *Rebuilder) inconsistent(logger *slog.Logger, stage string, err error) error {
	err = fmt.Errorf("%w: %s: %w", ErrIndexInconsistent, stage, err)
	logger.Error("index write failed after the existing documents were deleted", "stage", stage, "error", err)
	return err
}
