package navigator

import "testing"

func TestResourceFilter(t *testing.T) {
	f := newResourceFilter([]string{"Images", " fonts ", "xhr", ""})
	tests := []struct {
		typ  string
		want bool
	}{
		{"Image", true},
		{"Font", true},
		{"Stylesheet", false},
		{"Document", false},
		{"XHR", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := f.blocks(tt.typ); got != tt.want {
			t.Errorf("blocks(%q) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}
