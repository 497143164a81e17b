package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/snapshot"
	"github.com/hazyhaar/icmsnap/uf"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	var tick int64
	base := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	s, err := Open(":memory:", WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fullSnapshot(internal float64, used ...string) *icms.Snapshot {
	m := icms.Matrix{}
	for _, o := range uf.All {
		for _, d := range uf.All {
			v := 12.0
			if o == d {
				v = internal
			}
			m.Set(o, d, icms.Rate(v))
		}
	}
	return &icms.Snapshot{
		Matrix:     m,
		Intrastate: m.Diagonal(),
		Metadata: icms.Metadata{
			Used:        used,
			ExtractedAt: time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC),
		},
	}
}

func TestIngest_Full(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	res, err := s.Ingest(ctx, fullSnapshot(18, "taxgroup", "matriz"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.Success || res.TotalIntrastate != 27 || res.TotalInterstate != 729 || res.TotalRecords != 756 {
		t.Fatalf("result: got %+v", res)
	}
	if len(res.Errors) != 0 {
		t.Errorf("errors: %v", res.Errors)
	}

	r, err := s.Rate(ctx, "SP", "RJ")
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if r.Rate != 12 || r.Source != "taxgroup" {
		t.Errorf("SP->RJ: got %+v", r)
	}
	in, err := s.IntrastateFor(ctx, "BA")
	if err != nil || in.Rate != 18 {
		t.Errorf("BA: got %+v, %v", in, err)
	}

	h, err := s.History(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 1 || h[0].Status != StatusSuccess || h[0].TotalRecords != 756 {
		t.Errorf("history: got %+v", h)
	}
}

func TestIngest_SoftDeletesPrevious(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	if _, err := s.Ingest(ctx, fullSnapshot(18, "a")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Ingest(ctx, fullSnapshot(19, "b")); err != nil {
		t.Fatal(err)
	}

	m, err := s.Matrix(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m.CellCount() != 729 {
		t.Errorf("active cells: got %d, want 729", m.CellCount())
	}
	if v, _ := m.Rate("SP", "SP"); v != 19 {
		t.Errorf("SP->SP: got %v, want 19", v)
	}
	list, err := s.Intrastate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 27 || list[0].State != "AC" || list[0].Source != "b" {
		t.Errorf("intrastate: got %d rows, first %+v", len(list), list[0])
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM aliquotas_interestaduais`).Scan(&total); err != nil {
		t.Fatal(err)
	}
	if total != 1458 {
		t.Errorf("stored interstate rows: got %d, want 1458 (history kept)", total)
	}

	h, _ := s.History(ctx, 1)
	if len(h) != 1 || h[0].Source != "b" {
		t.Errorf("latest history: got %+v", h)
	}
}

func TestIngest_TextCellsRejected(t *testing.T) {
	s := openMemory(t)
	snap := fullSnapshot(18)
	snap.Matrix.Set("AC", "AM", icms.Text("ver nota"))

	res, err := s.Ingest(context.Background(), snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalInterstate != 728 || len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "ver nota") {
		t.Fatalf("result: got %+v", res)
	}
	if _, err := s.Rate(context.Background(), "AC", "AM"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AC->AM: got %v, want ErrNotFound", err)
	}
	h, _ := s.History(context.Background(), 1)
	if h[0].Status != StatusPartial || h[0].Source != UnknownSource {
		t.Errorf("history: got %+v", h[0])
	}
}

func TestIngest_Batches(t *testing.T) {
	s := openMemory(t)
	// a duplicate id makes exactly the second batch fail
	snap := fullSnapshot(18, "a")
	snap.Intrastate = nil
	var ids int
	s.newID = func() string {
		ids++
		if ids == 150 || ids == 151 {
			return "dup"
		}
		return fmt.Sprintf("id-%05d", ids)
	}

	res, err := s.Ingest(context.Background(), snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalInterstate != 729-BatchSize {
		t.Errorf("TotalInterstate: got %d, want %d", res.TotalInterstate, 729-BatchSize)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "lote 2") {
		t.Errorf("errors: got %v", res.Errors)
	}
}

func TestImportFile(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "aliquotas.json")
	if err := snapshot.Write(path, fullSnapshot(17, "taxgroup")); err != nil {
		t.Fatal(err)
	}

	res, err := s.ImportFile(ctx, path)
	if err != nil || res.TotalRecords != 756 {
		t.Fatalf("ImportFile: %+v, %v", res, err)
	}

	if _, err := s.ImportFile(ctx, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file: want error")
	}
	h, _ := s.History(ctx, 1)
	if h[0].Status != StatusError || h[0].Source != "importacao_json" {
		t.Errorf("history: got %+v", h[0])
	}
}

func TestRate_NotFound(t *testing.T) {
	s := openMemory(t)
	if _, err := s.Rate(context.Background(), "SP", "RJ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := s.IntrastateFor(context.Background(), "SP"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
