package source

import (
	"context"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/navigator"
	"github.com/hazyhaar/icmsnap/tableparse"
)

// MatrixAdapter reads a source that publishes the whole interstate matrix
// as one (possibly paginated) table: destinations across, origins down.
type MatrixAdapter struct {
	SourceName string
	Address    string
	MaxPages   int // 0 = follow pagination until it ends
}

func (a *MatrixAdapter) Name() string { return a.SourceName }
func (a *MatrixAdapter) URL() string  { return a.Address }

// Extract loads the page and parses every pagination page of its first
// table. The table is looked up again after each click since some sites
// replace it rather than refilling it.
func (a *MatrixAdapter) Extract(ctx context.Context, nav navigator.Navigator) (*Extraction, error) {
	if err := nav.Load(ctx, a.Address); err != nil {
		return nil, err
	}
	if _, err := nav.FindTable(ctx); err != nil {
		return nil, err
	}

	ext := &Extraction{Matrix: icms.Matrix{}}
	// Every page repeats the header, so header warnings would repeat too.
	seen := make(map[icms.Warning]bool)
	read := func(ctx context.Context) error {
		tbl, err := nav.FindTable(ctx)
		if err != nil {
			return err
		}
		markup, err := tbl.HTML(ctx)
		if err != nil {
			return err
		}
		res, err := tableparse.ParseMatrix(markup)
		if err != nil {
			return err
		}
		merge(ext.Matrix, res.Matrix)
		for _, w := range res.Warnings {
			if !seen[w] {
				seen[w] = true
				ext.Warnings = append(ext.Warnings, w)
			}
		}
		return nil
	}

	pages, err := paginate(ctx, nav, a.MaxPages, ext, read)
	ext.Pages = pages
	return ext, err
}
