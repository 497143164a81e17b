package reconcile

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/uf"
)

func TestValidate_Complete(t *testing.T) {
	if w := Validate(fullMatrix(uf.All, 18)); len(w) != 0 {
		t.Errorf("got %v, want no warnings", w)
	}
}

func TestValidate_ScenarioD_TwentyStates(t *testing.T) {
	warnings := Validate(fullMatrix(uf.All[:20], 18))
	if len(warnings) != 7 {
		t.Fatalf("got %d warnings, want 7: %v", len(warnings), warnings)
	}
	var missing []uf.Code
	for _, w := range warnings {
		if w.Kind != icms.Completeness {
			t.Errorf("kind: got %s, want completeness", w.Kind)
		}
		if !strings.Contains(w.Message, w.State.Name()) {
			t.Errorf("warning %q does not name %s", w.Message, w.State.Name())
		}
		missing = append(missing, w.State)
	}
	if diff := cmp.Diff(uf.All[20:], missing); diff != "" {
		t.Errorf("missing (-want +got):\n%s", diff)
	}
}

func TestValidate_DestinationShortfall(t *testing.T) {
	m := fullMatrix(uf.All, 18)
	delete(m["SP"], "AC")
	delete(m["SP"], "AL")
	delete(m, "TO")

	warnings := Validate(m)
	if len(warnings) != 2 {
		t.Fatalf("got %v, want missing TO then SP shortfall", warnings)
	}
	if warnings[0].State != "TO" {
		t.Errorf("first warning: got %v, want TO missing", warnings[0])
	}
	if warnings[1].State != "SP" || !strings.Contains(warnings[1].Message, "25 of 27") {
		t.Errorf("second warning: got %v, want SP with 25 of 27", warnings[1])
	}
}

func TestValidate_Empty(t *testing.T) {
	if got := len(Missing(icms.Matrix{})); got != uf.Count {
		t.Errorf("Missing on empty matrix: got %d, want %d", got, uf.Count)
	}
}
