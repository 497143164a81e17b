package icms

import (
	"fmt"

	"github.com/hazyhaar/icmsnap/uf"
)

// WarningKind classifies a non-fatal condition recorded during a run.
type WarningKind string

const (
	ParseFailure   WarningKind = "parse_failure"
	ColumnMismatch WarningKind = "column_mismatch"
	ConflictKind   WarningKind = "conflict"
	Completeness   WarningKind = "completeness"
	SourceFailure  WarningKind = "source_failure"
	Cancelled      WarningKind = "cancelled"
)

// Warning is a non-fatal condition kept for audit in the snapshot.
type Warning struct {
	Kind    WarningKind
	Source  string  // empty for run-level warnings
	State   uf.Code // empty when not state specific
	Message string
}

func (w Warning) String() string {
	if w.Source == "" {
		return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Kind, w.Source, w.Message)
}

// Conflict records sources disagreeing on an intrastate rate and which
// value was kept.
type Conflict struct {
	State        uf.Code            `json:"uf"`
	Values       map[string]float64 `json:"valores"`
	Chosen       float64            `json:"escolhido"`
	ChosenSource string             `json:"fonte_escolhida"`
}
