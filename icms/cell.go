// Package icms defines the rate data model shared by the extraction core:
// rate cells, the interstate matrix, per-source runs, warnings and the
// snapshot handed to the import layer.
package icms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Cell is one rate in a matrix. A cell is either a numeric percentage or
// the raw text a source printed when it could not be normalized.
type Cell struct {
	value float64
	text  string
	raw   bool
}

// Rate returns a numeric cell.
func Rate(v float64) Cell { return Cell{value: v} }

// Text returns an unparsed cell carrying the source text verbatim.
func Text(s string) Cell { return Cell{text: s, raw: true} }

// Float returns the numeric value and whether the cell is numeric.
func (c Cell) Float() (float64, bool) {
	if c.raw {
		return 0, false
	}
	return c.value, true
}

// IsText reports whether the cell holds unparsed text.
func (c Cell) IsText() bool { return c.raw }

func (c Cell) String() string {
	if c.raw {
		return c.text
	}
	return strconv.FormatFloat(c.value, 'f', -1, 64)
}

// MarshalJSON writes numbers as JSON numbers and text as JSON strings.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.raw {
		return json.Marshal(c.text)
	}
	return json.Marshal(c.value)
}

// UnmarshalJSON accepts a JSON number or a JSON string.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Text(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("icms: cell must be a number or a string: %s", data)
	}
	*c = Rate(v)
	return nil
}

// Equal reports whether two cells hold the same number or the same text.
func (c Cell) Equal(o Cell) bool {
	if c.raw != o.raw {
		return false
	}
	if c.raw {
		return c.text == o.text
	}
	return c.value == o.value
}
