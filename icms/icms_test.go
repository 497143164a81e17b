package icms

import (
	"encoding/json"
	"errors"
	"io/fs"
	"testing"

	"github.com/hazyhaar/icmsnap/uf"
)

func TestCell_JSON(t *testing.T) {
	m := Matrix{}
	m.Set("SP", "RJ", Rate(12))
	m.Set("SP", "SP", Rate(18))
	m.Set("SP", "MG", Text("ver nota"))

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"SP":{"MG":"ver nota","RJ":12,"SP":18}}`
	if string(data) != want {
		t.Fatalf("marshal: got %s, want %s", data, want)
	}

	var back Matrix
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := back.Rate("SP", "RJ"); !ok || v != 12 {
		t.Errorf("SP->RJ = %v, %v; want 12", v, ok)
	}
	c, _ := back.Get("SP", "MG")
	if !c.IsText() || c.String() != "ver nota" {
		t.Errorf("SP->MG = %+v, want text %q", c, "ver nota")
	}
}

func TestCell_UnmarshalRejectsObjects(t *testing.T) {
	var c Cell
	if err := json.Unmarshal([]byte(`{"x":1}`), &c); err == nil {
		t.Fatal("expected error for object cell")
	}
}

func TestMatrix_Diagonal(t *testing.T) {
	m := Matrix{}
	m.Set("SP", "SP", Rate(18))
	m.Set("RJ", "RJ", Text("n/d"))
	m.Set("MG", "SP", Rate(12))

	d := m.Diagonal()
	if len(d) != 1 || d["SP"] != 18 {
		t.Fatalf("Diagonal = %v, want map[SP:18]", d)
	}
	if _, ok := d["MG"]; ok {
		t.Error("MG has no self pair and must be absent")
	}
}

func TestMatrix_CountsAndOrigins(t *testing.T) {
	m := Matrix{}
	m.Set("TO", "AC", Rate(12))
	m.Set("AC", "AC", Rate(19))
	m.Set("AC", "TO", Rate(12))

	if got := m.CellCount(); got != 3 {
		t.Errorf("CellCount = %d, want 3", got)
	}
	origins := m.Origins()
	if len(origins) != 2 || origins[0] != uf.Code("AC") || origins[1] != uf.Code("TO") {
		t.Errorf("Origins = %v, want [AC TO]", origins)
	}

	cp := m.Clone()
	cp.Set("AC", "AC", Rate(1))
	if v, _ := m.Rate("AC", "AC"); v != 19 {
		t.Error("Clone must not share rows")
	}
}

func TestErrors_Unwrap(t *testing.T) {
	nav := &NavigationError{URL: "https://x", Op: "load", Cause: fs.ErrNotExist}
	if !errors.Is(nav, fs.ErrNotExist) {
		t.Error("NavigationError should unwrap its cause")
	}
	w := &SnapshotWriteError{Path: "/tmp/x.json", Cause: fs.ErrPermission}
	if !errors.Is(w, fs.ErrPermission) {
		t.Error("SnapshotWriteError should unwrap its cause")
	}
}
