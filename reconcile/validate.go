package reconcile

import (
	"fmt"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/uf"
)

// Validate checks m against the 27 expected states. Missing origins come
// first, in canonical order, then every present origin with fewer than 27
// destinations. It never fails; gaps are only reported.
func Validate(m icms.Matrix) []icms.Warning {
	var out []icms.Warning
	for _, st := range Missing(m) {
		out = append(out, icms.Warning{
			Kind:    icms.Completeness,
			State:   st,
			Message: fmt.Sprintf("state %s (%s) missing from matrix", st, st.Name()),
		})
	}
	for _, st := range uf.All {
		row, ok := m[st]
		if !ok {
			continue
		}
		if n := len(row); n < uf.Count {
			out = append(out, icms.Warning{
				Kind:    icms.Completeness,
				State:   st,
				Message: fmt.Sprintf("origin %s has %d of %d destinations", st, n, uf.Count),
			})
		}
	}
	return out
}

// Missing returns the expected states absent from m as origins.
func Missing(m icms.Matrix) []uf.Code {
	var out []uf.Code
	for _, st := range uf.All {
		if _, ok := m[st]; !ok {
			out = append(out, st)
		}
	}
	return out
}
