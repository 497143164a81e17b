package uf

import "testing"

func TestAll(t *testing.T) {
	if len(All) != Count {
		t.Fatalf("len(All) = %d, want %d", len(All), Count)
	}
	seen := map[Code]bool{}
	for _, c := range All {
		if seen[c] {
			t.Errorf("duplicate code %s", c)
		}
		seen[c] = true
		if c.Name() == "" {
			t.Errorf("%s has no name", c)
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		in   string
		want Code
		ok   bool
	}{
		{"SP", "SP", true},
		{" rj ", "RJ", true},
		{"São Paulo", "SP", true},
		{"sao paulo", "SP", true},
		{"ESPIRITO SANTO", "ES", true},
		{"Origem/Destino", "", false},
		{"", "", false},
		{"XX", "", false},
	}
	for _, tt := range tests {
		got, ok := Lookup(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMatchName_Longest(t *testing.T) {
	tests := []struct {
		in   string
		want Code
	}{
		{"Tabela ICMS 2026 – Mato Grosso do Sul", "MS"},
		{"Tabela ICMS 2026 – Mato Grosso", "MT"},
		{"Rio Grande do Norte", "RN"},
		{"rio grande do sul", "RS"},
		{"Pará", "PA"},
		{"Paraná", "PR"},
		{"Paraíba", "PB"},
		{"Goias", "GO"},
	}
	for _, tt := range tests {
		got, ok := MatchName(tt.in)
		if !ok || got != tt.want {
			t.Errorf("MatchName(%q) = %q, %v; want %q", tt.in, got, ok, tt.want)
		}
	}
	if _, ok := MatchName("Tabela ICMS 2026"); ok {
		t.Error("MatchName should not match text without a state name")
	}
}

func TestSort(t *testing.T) {
	codes := []Code{"TO", "AC", "SP", "MG"}
	Sort(codes)
	want := []Code{"AC", "MG", "SP", "TO"}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("Sort = %v, want %v", codes, want)
		}
	}
}
