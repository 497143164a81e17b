// Package snapshot builds the immutable output of a run and writes it to
// disk all-or-nothing: the document goes to a temporary file in the target
// directory and is renamed into place once complete.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/reconcile"
)

// Build assembles a snapshot from a reconciliation result and the
// validator's warnings. Everything is copied; later changes to res do not
// reach the snapshot. extra holds run-level warnings (cancellation).
func Build(res *reconcile.Result, validation []icms.Warning, at time.Time, extra ...icms.Warning) *icms.Snapshot {
	bySource := make(map[string]icms.Intrastate, len(res.BySource))
	for name, in := range res.BySource {
		bySource[name] = in.Clone()
	}

	warnings := make([]icms.Warning, 0, len(res.Warnings)+len(validation)+len(extra))
	warnings = append(warnings, res.Warnings...)
	warnings = append(warnings, extra...)
	warnings = append(warnings, validation...)

	errs := make([]string, len(warnings))
	for i, w := range warnings {
		errs[i] = w.String()
	}

	conflicts := make([]icms.Conflict, len(res.Conflicts))
	for i, c := range res.Conflicts {
		c.Values = maps.Clone(c.Values)
		conflicts[i] = c
	}

	m := res.Matrix.Clone()
	intra := res.Intrastate.Clone()
	if intra == nil {
		intra = icms.Intrastate{}
	}
	return &icms.Snapshot{
		Matrix:     m,
		Intrastate: intra,
		BySource:   bySource,
		Metadata: icms.Metadata{
			Consulted:   nonNil(res.Consulted),
			Used:        nonNil(res.Used),
			ExtractedAt: at,
			TotalStates: len(m),
			TotalRates:  m.CellCount(),
			Errors:      errs,
			Conflicts:   conflicts,
		},
		Warnings: warnings,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

// Encode renders snap as indented JSON with non-ASCII text left as is.
func Encode(snap *icms.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write places snap at path. On any failure the previous content of path,
// if any, is left untouched and no temporary file remains. Errors are
// *icms.SnapshotWriteError.
func Write(path string, snap *icms.Snapshot) (err error) {
	fail := func(cause error) error { return &icms.SnapshotWriteError{Path: path, Cause: cause} }

	data, err := Encode(snap)
	if err != nil {
		return fail(fmt.Errorf("encode: %w", err))
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(err)
	}
	return nil
}

// Read loads a snapshot written by Write.
func Read(path string) (*icms.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}
	var snap icms.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", path, err)
	}
	if snap.Matrix == nil {
		snap.Matrix = icms.Matrix{}
	}
	return &snap, nil
}
