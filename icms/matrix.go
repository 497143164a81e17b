package icms

import (
	"maps"

	"github.com/hazyhaar/icmsnap/uf"
)

// Matrix maps origin state to destination state to rate. The self-pairs
// are the intrastate rates.
type Matrix map[uf.Code]map[uf.Code]Cell

// Intrastate maps a state to its internal rate.
type Intrastate map[uf.Code]float64

// Set stores a cell, creating the origin row when needed.
func (m Matrix) Set(origin, dest uf.Code, c Cell) {
	row, ok := m[origin]
	if !ok {
		row = make(map[uf.Code]Cell)
		m[origin] = row
	}
	row[dest] = c
}

// Get returns the cell for a pair.
func (m Matrix) Get(origin, dest uf.Code) (Cell, bool) {
	c, ok := m[origin][dest]
	return c, ok
}

// Rate returns the numeric rate for a pair. Missing pairs and text cells
// both report false.
func (m Matrix) Rate(origin, dest uf.Code) (float64, bool) {
	c, ok := m.Get(origin, dest)
	if !ok {
		return 0, false
	}
	return c.Float()
}

// Diagonal derives the intrastate rates from the numeric self-pairs.
func (m Matrix) Diagonal() Intrastate {
	out := make(Intrastate)
	for origin, row := range m {
		c, ok := row[origin]
		if !ok {
			continue
		}
		if v, ok := c.Float(); ok {
			out[origin] = v
		}
	}
	return out
}

// Origins returns the origin states in canonical order.
func (m Matrix) Origins() []uf.Code {
	out := make([]uf.Code, 0, len(m))
	for o := range m {
		out = append(out, o)
	}
	uf.Sort(out)
	return out
}

// CellCount is the sum of destination counts over all origins.
func (m Matrix) CellCount() int {
	n := 0
	for _, row := range m {
		n += len(row)
	}
	return n
}

// Clone deep-copies the matrix.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for o, row := range m {
		out[o] = maps.Clone(row)
	}
	return out
}

// Clone copies the rates.
func (r Intrastate) Clone() Intrastate {
	return maps.Clone(r)
}
