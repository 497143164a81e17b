package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/navigator"
	"github.com/hazyhaar/icmsnap/tableparse"
	"github.com/hazyhaar/icmsnap/uf"
)

// HeadingAdapter reads a source that publishes one table per origin state,
// each under a heading such as "Tabela ICMS 2026 – Mato Grosso do Sul".
// Every table row is a destination and its rate.
type HeadingAdapter struct {
	SourceName string
	Address    string
	HeadingTag string // default "h2"
	Marker     string // headings must contain it; empty accepts every heading
	MaxPages   int    // per table; 0 = follow pagination until it ends
}

// DefaultMarker is the heading prefix used by the per-state rate pages.
const DefaultMarker = "Tabela ICMS"

func (a *HeadingAdapter) Name() string { return a.SourceName }
func (a *HeadingAdapter) URL() string  { return a.Address }

// Extract walks every marked heading, resolves its state and parses the
// table that follows it. A state met twice is read once.
func (a *HeadingAdapter) Extract(ctx context.Context, nav navigator.Navigator) (*Extraction, error) {
	tag := a.HeadingTag
	if tag == "" {
		tag = "h2"
	}
	if err := nav.Load(ctx, a.Address); err != nil {
		return nil, err
	}
	secs, err := nav.FindSections(ctx, tag)
	if err != nil {
		return nil, err
	}

	ext := &Extraction{Matrix: icms.Matrix{}}
	seen := make(map[uf.Code]bool)
	for _, sec := range secs {
		if ctx.Err() != nil {
			ext.Warnings = append(ext.Warnings, icms.Warning{
				Kind:    icms.Cancelled,
				Message: fmt.Sprintf("stopped before heading %q: %v", sec.Heading, ctx.Err()),
			})
			break
		}
		if !a.marked(sec.Heading) {
			continue
		}
		origin, ok := uf.MatchName(stateNamePart(sec.Heading))
		if !ok {
			ext.Warnings = append(ext.Warnings, icms.Warning{
				Kind:    icms.ParseFailure,
				Message: fmt.Sprintf("heading %q names no known state", sec.Heading),
			})
			continue
		}
		if seen[origin] {
			continue
		}
		seen[origin] = true
		if sec.Table == nil {
			ext.Warnings = append(ext.Warnings, icms.Warning{
				Kind:    icms.SourceFailure,
				State:   origin,
				Message: fmt.Sprintf("no table follows heading %q", sec.Heading),
			})
			continue
		}

		sub := &Extraction{Matrix: icms.Matrix{}}
		read := func(ctx context.Context) error {
			markup, err := sec.Table.HTML(ctx)
			if err != nil {
				return err
			}
			res, err := tableparse.ParsePairs(markup, origin)
			if err != nil {
				return err
			}
			merge(sub.Matrix, res.Matrix)
			sub.Warnings = append(sub.Warnings, res.Warnings...)
			return nil
		}
		pages, err := paginate(ctx, nav, a.MaxPages, sub, read)
		if err != nil {
			ext.Warnings = append(ext.Warnings, sub.Warnings...)
			ext.Warnings = append(ext.Warnings, icms.Warning{
				Kind:    icms.SourceFailure,
				State:   origin,
				Message: fmt.Sprintf("table under %q unreadable: %v", sec.Heading, err),
			})
			continue
		}
		merge(ext.Matrix, sub.Matrix)
		ext.Warnings = append(ext.Warnings, sub.Warnings...)
		ext.Pages += pages
	}
	return ext, nil
}

func (a *HeadingAdapter) marked(heading string) bool {
	if a.Marker == "" {
		return true
	}
	return strings.Contains(strings.ToLower(heading), strings.ToLower(a.Marker))
}

// stateNamePart returns the text after the last dash separator of a
// heading, or the whole heading when it has none.
func stateNamePart(heading string) string {
	cut := -1
	size := 0
	for _, sep := range []string{"–", "—", "- "} {
		if i := strings.LastIndex(heading, sep); i > cut {
			cut, size = i, len(sep)
		}
	}
	if cut < 0 {
		return heading
	}
	return strings.TrimSpace(heading[cut+size:])
}
