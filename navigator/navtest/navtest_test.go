package navtest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/icmsnap/icms"
)

const page1 = `<html><body>
<h2>Tabela ICMS 2026 – Acre</h2><p>intro</p>
<table id="ac"><tr><td>SP</td><td>12%</td></tr></table>
<h2>Sem tabela</h2>
<h2>Tabela ICMS 2026 – Bahia</h2>
<table id="ba"><tr><td>SP</td><td>7%</td></tr></table>
<a class="paginate_button previous disabled">Previous</a>
<a>1</a><a>2</a>
<a class="paginate_button next">Next</a>
</body></html>`

const page2 = `<html><body>
<table id="p2"><tr><td>RJ</td><td>12%</td></tr></table>
<a class="paginate_button next disabled">Next</a>
<a>1</a><a>2</a>
</body></html>`

func TestFake_SectionsAndPaging(t *testing.T) {
	ctx := context.Background()
	f := New(map[string]Site{"https://x": {Pages: []string{page1, page2}}})
	if err := f.Load(ctx, "https://x"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	secs, err := f.FindSections(ctx, "h2")
	if err != nil {
		t.Fatalf("FindSections: %v", err)
	}
	if len(secs) != 3 {
		t.Fatalf("sections: got %d, want 3", len(secs))
	}
	h, _ := secs[0].Table.HTML(ctx)
	if !strings.Contains(h, `id="ac"`) {
		t.Errorf("first section table: got %s", h)
	}
	// A heading without its own table borrows the next one in document order.
	h, _ = secs[1].Table.HTML(ctx)
	if !strings.Contains(h, `id="ba"`) {
		t.Errorf("second section table: got %s", h)
	}

	ok, err := f.AdvancePage(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("AdvancePage(1) = %v, %v; want true", ok, err)
	}
	tbl, err := f.FindTable(ctx)
	if err != nil {
		t.Fatalf("FindTable: %v", err)
	}
	h, _ = tbl.HTML(ctx)
	if !strings.Contains(h, `id="p2"`) {
		t.Errorf("page 2 table: got %s", h)
	}

	ok, err = f.AdvancePage(ctx, 2)
	if err != nil || ok {
		t.Fatalf("AdvancePage(2) = %v, %v; want false on the last page", ok, err)
	}
	if f.Advances() != 1 {
		t.Errorf("Advances: got %d, want 1", f.Advances())
	}
}

func TestFake_LoadErrors(t *testing.T) {
	f := New(map[string]Site{"https://down": {LoadErr: errors.New("503")}})
	err := f.Load(context.Background(), "https://down")
	var nav *icms.NavigationError
	if !errors.As(err, &nav) {
		t.Fatalf("got %v, want NavigationError", err)
	}
	if err := f.Load(context.Background(), "https://unknown"); !errors.As(err, &nav) {
		t.Fatalf("got %v, want NavigationError", err)
	}
}
