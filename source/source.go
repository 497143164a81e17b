// Package source holds the per-site adapters that turn a rate page into
// an interstate matrix, and the boundary that converts adapter failures
// into failed runs instead of aborting the whole extraction.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/navigator"
)

// ErrNoRows is returned when a page was reached but no rate row parsed.
var ErrNoRows = errors.New("source: no rate rows parsed")

// Extraction is what an adapter produced before the boundary wraps it.
type Extraction struct {
	Matrix   icms.Matrix
	Warnings []icms.Warning
	Pages    int
}

// Adapter binds one source URL to one table-location strategy.
type Adapter interface {
	Name() string
	URL() string
	Extract(ctx context.Context, nav navigator.Navigator) (*Extraction, error)
}

// Run invokes a at the adapter boundary. Errors and panics become a
// failed run; an empty extraction is a failure; anything else, however
// partial, is a success.
func Run(ctx context.Context, a Adapter, nav navigator.Navigator, logger *slog.Logger) (run icms.SourceRun) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	log := logger.With("source", a.Name(), "url", a.URL())

	defer func() {
		if r := recover(); r != nil {
			run = icms.Failed(a.Name(), a.URL(), fmt.Errorf("source %s: panic: %v", a.Name(), r))
			log.Error("source: adapter panicked", "panic", r)
		}
		run.StartedAt, run.FinishedAt = start, time.Now()
	}()

	log.Info("source: extracting")
	ext, err := a.Extract(ctx, nav)
	if err == nil && (ext == nil || len(ext.Matrix) == 0) {
		err = ErrNoRows
	}
	var warnings []icms.Warning
	if ext != nil {
		warnings = ext.Warnings
		for i := range warnings {
			warnings[i].Source = a.Name()
		}
	}
	if err != nil {
		log.Warn("source: extraction failed", "error", err, "warnings", len(warnings))
		run = icms.Failed(a.Name(), a.URL(), fmt.Errorf("source %s: %w", a.Name(), err))
		run.Warnings = warnings
		return run
	}

	run = icms.Succeeded(a.Name(), a.URL(), ext.Matrix, ext.Warnings)
	run.Pages = ext.Pages
	log.Info("source: extracted",
		"states", len(ext.Matrix), "cells", ext.Matrix.CellCount(),
		"pages", ext.Pages, "warnings", len(ext.Warnings))
	return run
}

// merge copies every cell of src into dst; later pages win on overlap.
func merge(dst, src icms.Matrix) {
	for o, row := range src {
		for d, c := range row {
			dst.Set(o, d, c)
		}
	}
}

// paginate parses the current table, then keeps clicking to the next page
// until no control is left, maxPages is reached or ctx is cancelled.
// It returns the number of pages read.
func paginate(ctx context.Context, nav navigator.Navigator, maxPages int, ext *Extraction,
	read func(ctx context.Context) error) (int, error) {
	page := 1
	for {
		if err := read(ctx); err != nil {
			if len(ext.Matrix) == 0 {
				return page, err
			}
			ext.Warnings = append(ext.Warnings, icms.Warning{
				Kind:    stopKind(ctx, err),
				Message: fmt.Sprintf("page %d unreadable, keeping earlier pages: %v", page, err),
			})
			return page, nil
		}
		if maxPages > 0 && page >= maxPages {
			return page, nil
		}
		if ctx.Err() != nil {
			ext.Warnings = append(ext.Warnings, icms.Warning{
				Kind:    icms.Cancelled,
				Message: fmt.Sprintf("pagination stopped after page %d: %v", page, ctx.Err()),
			})
			return page, nil
		}
		ok, err := nav.AdvancePage(ctx, page)
		if err != nil {
			if len(ext.Matrix) == 0 {
				return page, err
			}
			ext.Warnings = append(ext.Warnings, icms.Warning{
				Kind:    stopKind(ctx, err),
				Message: fmt.Sprintf("pagination stopped after page %d: %v", page, err),
			})
			return page, nil
		}
		if !ok {
			return page, nil
		}
		page++
	}
}

// stopKind tells a cancelled run from a failing source.
func stopKind(ctx context.Context, err error) icms.WarningKind {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return icms.Cancelled
	}
	return icms.SourceFailure
}
