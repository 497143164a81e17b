// Package tableparse turns rate tables scraped from HTML into matrix rows.
//
// Two layouts are supported:
//   - matrix: a header row of destination states and one row per origin
//   - pairs:  one table per origin, each row a destination and its rate
//
// Rates are written the Brazilian way ("12,5%"); cells that cannot be
// normalized are kept as text and reported as parse failures.
package tableparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/uf"
)

// Result is the output of parsing one table.
type Result struct {
	Matrix   icms.Matrix
	Rows     int // data rows that produced at least one cell
	Warnings []icms.Warning
}

// ErrNoTable is returned when the markup contains no <table> element.
var ErrNoTable = errors.New("tableparse: no table in markup")

var plainDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseRate normalizes a locale-formatted percentage: the % sign is
// dropped, a decimal comma becomes a point and whitespace is trimmed.
// Only plain non-negative decimals are accepted; signs, exponents, hex
// floats, NaN and Inf are not rates.
func ParseRate(s string) (float64, bool) {
	t := strings.ReplaceAll(s, "%", "")
	t = strings.ReplaceAll(t, ",", ".")
	t = strings.TrimSpace(t)
	if !plainDecimal.MatchString(t) {
		return 0, false
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseMatrix reads a header row of destination labels followed by one
// row per origin. Cells align with the header by position.
func ParseMatrix(tableHTML string) (*Result, error) {
	tbl, err := firstTable(tableHTML)
	if err != nil {
		return nil, err
	}
	rows := tableRows(tbl)
	res := &Result{Matrix: icms.Matrix{}}
	if rows.Length() == 0 {
		return res, nil
	}

	header := rows.First().ChildrenFiltered("th")
	if header.Length() == 0 {
		header = rows.First().ChildrenFiltered("td")
	}
	labels := cellTexts(header)
	if len(labels) > 0 {
		if _, ok := uf.Lookup(labels[0]); !ok {
			labels = labels[1:] // corner cell, e.g. "Origem / Destino"
		}
	}

	dests := make([]uf.Code, len(labels))
	for i, l := range labels {
		c, ok := uf.Lookup(l)
		if !ok {
			res.Warnings = append(res.Warnings, icms.Warning{
				Kind:    icms.ColumnMismatch,
				Message: fmt.Sprintf("header column %d %q is not a state; its cells are ignored", i+1, l),
			})
			continue
		}
		dests[i] = c
	}

	rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		cells := cellTexts(row.ChildrenFiltered("td, th"))
		if len(cells) == 0 {
			return
		}
		origin, ok := uf.Lookup(cells[0])
		if !ok {
			return
		}
		values := cells[1:]
		if len(values) > len(dests) {
			res.Warnings = append(res.Warnings, icms.Warning{
				Kind:  icms.ColumnMismatch,
				State: origin,
				Message: fmt.Sprintf("row %s has %d rate cells for %d header columns; %d extra cells dropped",
					origin, len(values), len(dests), len(values)-len(dests)),
			})
			values = values[:len(dests)]
		}
		added := 0
		for i, v := range values {
			if dests[i] == "" {
				continue
			}
			res.put(origin, dests[i], v)
			added++
		}
		if added > 0 {
			res.Rows++
		}
	})
	return res, nil
}

// ParsePairs reads a single-origin table where each row names a
// destination in its first cell and the rate in its last cell. Rows whose
// first cell is not a state (headers, notes) are skipped.
func ParsePairs(tableHTML string, origin uf.Code) (*Result, error) {
	tbl, err := firstTable(tableHTML)
	if err != nil {
		return nil, err
	}
	res := &Result{Matrix: icms.Matrix{}}
	tableRows(tbl).Each(func(_ int, row *goquery.Selection) {
		cells := cellTexts(row.ChildrenFiltered("td, th"))
		if len(cells) < 2 {
			return
		}
		dest, ok := uf.Lookup(cells[0])
		if !ok {
			return
		}
		res.put(origin, dest, cells[len(cells)-1])
		res.Rows++
	})
	return res, nil
}

func (r *Result) put(origin, dest uf.Code, text string) {
	if v, ok := ParseRate(text); ok {
		r.Matrix.Set(origin, dest, icms.Rate(v))
		return
	}
	r.Matrix.Set(origin, dest, icms.Text(text))
	r.Warnings = append(r.Warnings, icms.Warning{
		Kind:    icms.ParseFailure,
		State:   origin,
		Message: fmt.Sprintf("%s->%s: cannot parse rate %q", origin, dest, text),
	})
}

func firstTable(markup string) (*goquery.Selection, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("tableparse: parse HTML: %w", err)
	}
	tbl := goquery.NewDocumentFromNode(root).Find("table").First()
	if tbl.Length() == 0 {
		return nil, ErrNoTable
	}
	return tbl, nil
}

// tableRows returns the rows that belong to tbl itself, not to nested tables.
func tableRows(tbl *goquery.Selection) *goquery.Selection {
	return tbl.ChildrenFiltered("thead, tbody, tfoot").ChildrenFiltered("tr")
}

func cellTexts(cells *goquery.Selection) []string {
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.Join(strings.Fields(c.Text()), " "))
	})
	return out
}
