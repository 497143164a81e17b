// Package navtest provides a replay Navigator that serves canned HTML
// documents, one per pagination page, so adapters and runs can be tested
// without a browser.
package navtest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/navigator"
)

// Site is the canned content behind one URL.
type Site struct {
	Pages   []string // one HTML document per pagination page
	LoadErr error    // returned by Load when set
	Panic   string   // Load panics with this value when set
}

// Fake replays Sites. It implements navigator.Session.
type Fake struct {
	mu    sync.Mutex
	sites map[string]Site
	url   string
	page  int

	loads    []string
	advances int
	closes   int
}

var errUnknownURL = errors.New("navtest: unknown url")

// New returns a Fake serving sites keyed by URL.
func New(sites map[string]Site) *Fake {
	return &Fake{sites: sites}
}

// Load switches to the first page of url.
func (f *Fake) Load(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return &icms.NavigationError{URL: url, Op: "navigate", Cause: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, url)
	site, ok := f.sites[url]
	if !ok {
		return &icms.NavigationError{URL: url, Op: "navigate", Cause: errUnknownURL}
	}
	if site.Panic != "" {
		panic(site.Panic)
	}
	if site.LoadErr != nil {
		return &icms.NavigationError{URL: url, Op: "navigate", Cause: site.LoadErr}
	}
	f.url, f.page = url, 0
	return nil
}

// FindTable returns the first table of the current page.
func (f *Fake) FindTable(ctx context.Context) (navigator.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.docLocked()
	if err != nil {
		return nil, err
	}
	if doc.Find("table").Length() == 0 {
		return nil, &icms.NavigationError{URL: f.url, Op: "find table"}
	}
	return &table{f: f, index: 0}, nil
}

// FindSections pairs each heading with the next table in document order.
func (f *Fake) FindSections(ctx context.Context, headingTag string) ([]navigator.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.docLocked()
	if err != nil {
		return nil, err
	}

	var out []navigator.Section
	var pending []int // sections still waiting for a table
	tables := 0
	doc.Find(headingTag + ", table").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "table" {
			for _, i := range pending {
				out[i].Table = &table{f: f, index: tables}
			}
			pending = pending[:0]
			tables++
			return
		}
		out = append(out, navigator.Section{Heading: strings.TrimSpace(s.Text())})
		pending = append(pending, len(out)-1)
	})
	return out, nil
}

// AdvancePage applies the navigator's link heuristics to the anchors of
// the current page and moves to the page the chosen link points at.
func (f *Fake) AdvancePage(ctx context.Context, current int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.docLocked()
	if err != nil {
		return false, err
	}

	var links []navigator.Link
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		class, _ := a.Attr("class")
		aria, _ := a.Attr("aria-label")
		ariaDisabled, _ := a.Attr("aria-disabled")
		_, hasDisabled := a.Attr("disabled")
		links = append(links, navigator.Link{
			Text:      strings.TrimSpace(a.Text()),
			Class:     class,
			AriaLabel: aria,
			Disabled:  ariaDisabled == "true" || hasDisabled,
		})
	})

	idx, ok := navigator.ChooseAdvance(links, current)
	if !ok {
		return false, nil
	}
	target := f.page + 1
	if n, err := strconv.Atoi(links[idx].Text); err == nil {
		target = n - 1
	}
	if target < 0 || target >= len(f.sites[f.url].Pages) {
		return false, nil
	}
	f.page = target
	f.advances++
	return true, nil
}

// Close records the release.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

// Loads returns the URLs loaded so far.
func (f *Fake) Loads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

// Advances returns how many pagination clicks succeeded.
func (f *Fake) Advances() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advances
}

// Closes returns how many times Close was called.
func (f *Fake) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *Fake) docLocked() (*goquery.Document, error) {
	site, ok := f.sites[f.url]
	if !ok || f.page >= len(site.Pages) {
		return nil, &icms.NavigationError{URL: f.url, Op: "read page", Cause: fmt.Errorf("no page %d", f.page)}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(site.Pages[f.page]))
	if err != nil {
		return nil, &icms.NavigationError{URL: f.url, Op: "read page", Cause: err}
	}
	return doc, nil
}

type table struct {
	f     *Fake
	index int
}

func (t *table) HTML(ctx context.Context) (string, error) {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	doc, err := t.f.docLocked()
	if err != nil {
		return "", err
	}
	sel := doc.Find("table").Eq(t.index)
	if sel.Length() == 0 {
		return "", &icms.NavigationError{URL: t.f.url, Op: "read table", Cause: fmt.Errorf("table %d gone", t.index)}
	}
	return goquery.OuterHtml(sel)
}
