// Package reconcile folds the runs of one extraction into a single matrix
// and intrastate map, and checks the result for completeness.
package reconcile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/uf"
)

// Result is the reconciled data the snapshot is built from.
type Result struct {
	Base       string // source whose matrix was kept
	Matrix     icms.Matrix
	Intrastate icms.Intrastate
	BySource   map[string]icms.Intrastate
	Consulted  []string // every run, invocation order
	Used       []string // successful runs, priority order
	Conflicts  []icms.Conflict
	Warnings   []icms.Warning
}

// Rank orders runs by priority. Sources missing from priority come last,
// keeping their invocation order. runs is not modified.
func Rank(runs []icms.SourceRun, priority []string) []icms.SourceRun {
	rank := make(map[string]int, len(priority))
	for i, name := range priority {
		if _, dup := rank[name]; !dup {
			rank[name] = i
		}
	}
	pos := func(r icms.SourceRun) int {
		if i, ok := rank[r.Source]; ok {
			return i
		}
		return len(priority)
	}
	out := slices.Clone(runs)
	slices.SortStableFunc(out, func(a, b icms.SourceRun) int { return pos(a) - pos(b) })
	return out
}

// Reconcile picks the first usable run in priority order as the base
// matrix and resolves intrastate rates across every usable run. It returns
// icms.ErrNoSourceAvailable when no run produced a non-empty matrix.
//
// The same runs and priority always give the same Result.
func Reconcile(runs []icms.SourceRun, priority []string) (*Result, error) {
	res := &Result{BySource: map[string]icms.Intrastate{}}
	for _, r := range runs {
		res.Consulted = append(res.Consulted, r.Source)
		res.Warnings = append(res.Warnings, r.Warnings...)
		if !usable(r) {
			msg := "no rows extracted"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			res.Warnings = append(res.Warnings, icms.Warning{
				Kind:    icms.SourceFailure,
				Source:  r.Source,
				Message: msg,
			})
		}
	}

	ranked := Rank(runs, priority)
	var usableRuns []icms.SourceRun
	for _, r := range ranked {
		if usable(r) {
			usableRuns = append(usableRuns, r)
		}
	}
	if len(usableRuns) == 0 {
		return nil, icms.ErrNoSourceAvailable
	}

	res.Base = usableRuns[0].Source
	res.Matrix = usableRuns[0].Matrix.Clone()
	for _, r := range usableRuns {
		res.Used = append(res.Used, r.Source)
		res.BySource[r.Source] = r.Intrastate.Clone()
	}
	res.Intrastate, res.Conflicts = resolveIntrastate(usableRuns)
	for _, c := range res.Conflicts {
		res.Warnings = append(res.Warnings, conflictWarning(c, usableRuns))
	}
	return res, nil
}

func usable(r icms.SourceRun) bool {
	return r.OK && len(r.Matrix) > 0
}

// resolveIntrastate takes, per state, the common value when every reporting
// source agrees, else the value of the first (highest priority) reporter.
// runs must already be ranked.
func resolveIntrastate(runs []icms.SourceRun) (icms.Intrastate, []icms.Conflict) {
	out := icms.Intrastate{}
	var conflicts []icms.Conflict
	for _, st := range uf.All {
		var (
			chosen  float64
			from    string
			found   bool
			differs bool
			values  = map[string]float64{}
		)
		for _, r := range runs {
			v, ok := r.Intrastate[st]
			if !ok {
				continue
			}
			values[r.Source] = v
			if !found {
				chosen, from, found = v, r.Source, true
				continue
			}
			if v != chosen {
				differs = true
			}
		}
		if !found {
			continue
		}
		out[st] = chosen
		if differs {
			conflicts = append(conflicts, icms.Conflict{
				State:        st,
				Values:       values,
				Chosen:       chosen,
				ChosenSource: from,
			})
		}
	}
	return out, conflicts
}

func conflictWarning(c icms.Conflict, ranked []icms.SourceRun) icms.Warning {
	var parts []string
	for _, r := range ranked {
		if v, ok := c.Values[r.Source]; ok {
			parts = append(parts, fmt.Sprintf("%s=%g", r.Source, v))
		}
	}
	return icms.Warning{
		Kind:  icms.ConflictKind,
		State: c.State,
		Message: fmt.Sprintf("%s intrastate rate disagrees {%s}; kept %g from %s",
			c.State, strings.Join(parts, ", "), c.Chosen, c.ChosenSource),
	}
}
