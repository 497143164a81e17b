// Package navigator drives a browser page against rate sources: it loads
// a URL, finds tables (directly or under headings) and advances paginated
// tables. Everything a source adapter needs from a browser goes through
// the Navigator interface so adapters can run against a replay fake.
package navigator

import (
	"context"
	"time"
)

// Navigator is the browser capability used by source adapters. A
// Navigator holds one current page and is not safe for concurrent use.
type Navigator interface {
	// Load opens url and waits a bounded time for dynamic content.
	Load(ctx context.Context, url string) error
	// FindTable returns the first table on the current page, or an
	// *icms.NavigationError when there is none.
	FindTable(ctx context.Context) (Table, error)
	// FindSections returns every heading with the given tag together with
	// the first table that follows it in document order.
	FindSections(ctx context.Context, headingTag string) ([]Section, error)
	// AdvancePage clicks the control leading to page current+1 and reports
	// whether an advance happened.
	AdvancePage(ctx context.Context, current int) (bool, error)
}

// Table is a live handle on a table. HTML re-reads the table each time,
// so it reflects the rows of the current pagination page.
type Table interface {
	HTML(ctx context.Context) (string, error)
}

// Section is a heading and the table following it. Table is nil when no
// table follows the heading.
type Section struct {
	Heading string
	Table   Table
}

// Session is a Navigator that owns browser resources. Close releases them
// and is safe to call more than once.
type Session interface {
	Navigator
	Close() error
}

// Waits bounds every pause the navigator makes.
type Waits struct {
	Navigate time.Duration // navigation + load event
	Load     time.Duration // settle after load
	Scroll   time.Duration // settle after scroll-into-view
	Click    time.Duration // settle after a pagination click
}

// DefaultWaits mirrors what the rate sites need in practice.
var DefaultWaits = Waits{
	Navigate: 30 * time.Second,
	Load:     5 * time.Second,
	Scroll:   500 * time.Millisecond,
	Click:    2 * time.Second,
}

func (w *Waits) defaults() {
	if w.Navigate <= 0 {
		w.Navigate = DefaultWaits.Navigate
	}
	if w.Load < 0 {
		w.Load = 0
	}
	if w.Scroll < 0 {
		w.Scroll = 0
	}
	if w.Click < 0 {
		w.Click = 0
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
