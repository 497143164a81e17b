// Package runner executes one extraction: it owns the browser session for
// the duration of the run, invokes every source adapter in turn, then
// reconciles, validates and writes the snapshot.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/navigator"
	"github.com/hazyhaar/icmsnap/reconcile"
	"github.com/hazyhaar/icmsnap/snapshot"
	"github.com/hazyhaar/icmsnap/source"
)

// SessionFactory acquires the browser session of a run.
type SessionFactory func(ctx context.Context) (navigator.Session, error)

// Runner is the configuration of an extraction run. A Runner may be used
// for several runs, one at a time.
type Runner struct {
	Open     SessionFactory
	Adapters []source.Adapter
	Priority []string // ranked source names; unlisted sources rank last

	Output   string        // snapshot path; empty keeps the snapshot in memory
	Ingester icms.Ingester // optional import layer

	Now    func() time.Time
	Logger *slog.Logger
}

// Report is what a run produced.
type Report struct {
	Runs     []icms.SourceRun
	Snapshot *icms.Snapshot
	Path     string
	Ingest   *icms.IngestResult
}

// Run executes every adapter and produces a snapshot. Adapter failures
// only mark their run as failed. Run fails when no source produced data
// (icms.ErrNoSourceAvailable, no file written), when the snapshot cannot
// be written (*icms.SnapshotWriteError) or when the ingester fails.
//
// The session is closed exactly once before Run returns.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}

	rep := &Report{}
	var extra []icms.Warning

	sess, err := r.Open(ctx)
	if err != nil {
		logger.Error("runner: browser session unavailable", "error", err)
		for _, a := range r.Adapters {
			rep.Runs = append(rep.Runs, icms.Failed(a.Name(), a.URL(),
				&icms.NavigationError{URL: a.URL(), Op: "open session", Cause: err}))
		}
	} else {
		rep.Runs, extra = r.extract(ctx, sess, logger)
	}

	res, err := reconcile.Reconcile(rep.Runs, r.Priority)
	if err != nil {
		logger.Error("runner: no usable source", "consulted", len(rep.Runs))
		return rep, fmt.Errorf("runner: %w", err)
	}
	validation := reconcile.Validate(res.Matrix)
	rep.Snapshot = snapshot.Build(res, validation, now(), extra...)
	logger.Info("runner: reconciled",
		"base", res.Base, "used", res.Used,
		"states", rep.Snapshot.Metadata.TotalStates,
		"rates", rep.Snapshot.Metadata.TotalRates,
		"conflicts", len(res.Conflicts), "warnings", len(rep.Snapshot.Warnings))

	if r.Output != "" {
		if err := snapshot.Write(r.Output, rep.Snapshot); err != nil {
			return rep, err
		}
		rep.Path = r.Output
		logger.Info("runner: snapshot written", "path", r.Output)
	}

	if r.Ingester != nil {
		ir, err := r.Ingester.Ingest(ctx, rep.Snapshot)
		rep.Ingest = ir
		if err != nil {
			return rep, fmt.Errorf("runner: ingest: %w", err)
		}
		logger.Info("runner: snapshot ingested",
			"success", ir.Success, "records", ir.TotalRecords, "errors", len(ir.Errors))
	}
	return rep, nil
}

// extract runs the adapters sequentially on sess and releases it on every
// path, panics included.
func (r *Runner) extract(ctx context.Context, sess navigator.Session, logger *slog.Logger) (runs []icms.SourceRun, extra []icms.Warning) {
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("runner: close browser session", "error", err)
		}
	}()

	for i, a := range r.Adapters {
		if err := ctx.Err(); err != nil {
			extra = append(extra, icms.Warning{
				Kind:    icms.Cancelled,
				Message: fmt.Sprintf("run cancelled before %d of %d sources: %v", len(r.Adapters)-i, len(r.Adapters), err),
			})
			logger.Warn("runner: cancelled", "remaining", len(r.Adapters)-i)
			break
		}
		runs = append(runs, source.Run(ctx, a, sess, logger))
	}
	return runs, extra
}
