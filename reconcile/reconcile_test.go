package reconcile

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/uf"
)

// fullMatrix returns a complete matrix with the given intrastate rate on
// the diagonal of every state and 12 elsewhere.
func fullMatrix(origins []uf.Code, internal float64) icms.Matrix {
	m := icms.Matrix{}
	for _, o := range origins {
		for _, d := range uf.All {
			v := 12.0
			if o == d {
				v = internal
			}
			m.Set(o, d, icms.Rate(v))
		}
	}
	return m
}

func ok(name string, m icms.Matrix) icms.SourceRun {
	return icms.Succeeded(name, "https://"+name, m, nil)
}

func TestReconcile_ScenarioA_Agreement(t *testing.T) {
	runs := []icms.SourceRun{ok("a1", fullMatrix(uf.All, 18)), ok("a2", fullMatrix(uf.All, 18))}
	res, err := Reconcile(runs, []string{"a1", "a2"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Intrastate["SP"] != 18 {
		t.Errorf("SP: got %v, want 18", res.Intrastate["SP"])
	}
	if len(res.Conflicts) != 0 {
		t.Errorf("conflicts: got %v, want none", res.Conflicts)
	}
	for _, w := range res.Warnings {
		if w.Kind == icms.ConflictKind {
			t.Errorf("unexpected conflict warning: %v", w)
		}
	}
}

func TestReconcile_ScenarioB_PriorityWins(t *testing.T) {
	m2 := fullMatrix(uf.All, 18)
	m2.Set("SP", "SP", icms.Rate(17))
	runs := []icms.SourceRun{ok("adapter2", m2), ok("adapter1", fullMatrix(uf.All, 18))}

	res, err := Reconcile(runs, []string{"adapter1", "adapter2"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Base != "adapter1" {
		t.Errorf("Base: got %q, want adapter1", res.Base)
	}
	if res.Intrastate["SP"] != 18 {
		t.Errorf("SP: got %v, want 18", res.Intrastate["SP"])
	}
	want := []icms.Conflict{{
		State:        "SP",
		Values:       map[string]float64{"adapter1": 18, "adapter2": 17},
		Chosen:       18,
		ChosenSource: "adapter1",
	}}
	if diff := cmp.Diff(want, res.Conflicts); diff != "" {
		t.Errorf("conflicts (-want +got):\n%s", diff)
	}
	var found bool
	for _, w := range res.Warnings {
		if w.Kind == icms.ConflictKind && w.State == "SP" {
			found = strings.Contains(w.Message, "adapter1=18") && strings.Contains(w.Message, "adapter2=17")
		}
	}
	if !found {
		t.Errorf("no conflict warning carrying both values in %v", res.Warnings)
	}
}

func TestReconcile_ScenarioC_FailedFirstSource(t *testing.T) {
	runs := []icms.SourceRun{
		icms.Failed("adapter1", "https://adapter1", errors.New("timeout")),
		ok("adapter2", fullMatrix(uf.All[:5], 17)),
	}
	res, err := Reconcile(runs, []string{"adapter1", "adapter2"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if diff := cmp.Diff([]string{"adapter2"}, res.Used); diff != "" {
		t.Errorf("Used (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"adapter1", "adapter2"}, res.Consulted); diff != "" {
		t.Errorf("Consulted (-want +got):\n%s", diff)
	}
	if len(res.Matrix) != 5 {
		t.Errorf("matrix origins: got %d, want 5", len(res.Matrix))
	}
	if _, ok := res.BySource["adapter1"]; ok {
		t.Error("failed source must not contribute intrastate rates")
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != icms.SourceFailure || res.Warnings[0].Source != "adapter1" {
		t.Errorf("warnings: got %v, want one source failure for adapter1", res.Warnings)
	}
}

func TestReconcile_ScenarioE_AllFailed(t *testing.T) {
	runs := []icms.SourceRun{
		icms.Failed("adapter1", "u1", errors.New("down")),
		icms.Failed("adapter2", "u2", errors.New("down")),
		{Source: "adapter3", OK: true, Matrix: icms.Matrix{}},
	}
	_, err := Reconcile(runs, []string{"adapter1", "adapter2"})
	if !errors.Is(err, icms.ErrNoSourceAvailable) {
		t.Fatalf("got %v, want ErrNoSourceAvailable", err)
	}
	if _, err := Reconcile(nil, nil); !errors.Is(err, icms.ErrNoSourceAvailable) {
		t.Fatalf("no runs: got %v, want ErrNoSourceAvailable", err)
	}
}

func TestReconcile_AbsentStateStaysAbsent(t *testing.T) {
	m := fullMatrix(uf.All, 18)
	m.Set("AC", "AC", icms.Text("ver nota"))
	res, err := Reconcile([]icms.SourceRun{ok("a", m)}, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Intrastate["AC"]; ok {
		t.Errorf("AC: got %v, want absent", res.Intrastate["AC"])
	}
	if len(res.Intrastate) != 26 {
		t.Errorf("intrastate: got %d states, want 26", len(res.Intrastate))
	}
}

func TestReconcile_OnlyExpectedStates(t *testing.T) {
	runs := []icms.SourceRun{ok("a", fullMatrix(uf.All, 18)), ok("b", fullMatrix(uf.All[:3], 20))}
	res, err := Reconcile(runs, []string{"b", "a"})
	if err != nil {
		t.Fatal(err)
	}
	for o, row := range res.Matrix {
		if !o.Valid() {
			t.Errorf("foreign origin %q", o)
		}
		for d := range row {
			if !d.Valid() {
				t.Errorf("foreign destination %q", d)
			}
		}
	}
	for st := range res.Intrastate {
		if !st.Valid() {
			t.Errorf("foreign intrastate key %q", st)
		}
	}
	if res.Intrastate["AC"] != 20 || res.Intrastate["SP"] != 18 {
		t.Errorf("AC=%v SP=%v, want 20 and 18", res.Intrastate["AC"], res.Intrastate["SP"])
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	m2 := fullMatrix(uf.All, 18)
	m2.Set("RJ", "RJ", icms.Rate(22))
	runs := []icms.SourceRun{
		ok("a", fullMatrix(uf.All, 18)),
		icms.Failed("b", "u", errors.New("boom")),
		ok("c", m2),
	}
	first, err := Reconcile(runs, []string{"c", "a"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Reconcile(runs, []string{"c", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second reconcile differs (-first +second):\n%s", diff)
	}
}

func TestReconcile_DoesNotAliasRuns(t *testing.T) {
	base := fullMatrix(uf.All, 18)
	res, err := Reconcile([]icms.SourceRun{ok("a", base)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	res.Matrix.Set("SP", "SP", icms.Rate(99))
	if v, _ := base.Rate("SP", "SP"); v != 18 {
		t.Errorf("run matrix changed through the result: SP->SP = %v", v)
	}
}

func TestRank(t *testing.T) {
	runs := []icms.SourceRun{{Source: "x"}, {Source: "b"}, {Source: "y"}, {Source: "a"}}
	got := Rank(runs, []string{"a", "b"})
	var names []string
	for _, r := range got {
		names = append(names, r.Source)
	}
	if diff := cmp.Diff([]string{"a", "b", "x", "y"}, names); diff != "" {
		t.Errorf("Rank (-want +got):\n%s", diff)
	}
	if runs[0].Source != "x" {
		t.Error("Rank modified its input")
	}
}
