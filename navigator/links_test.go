package navigator

import "testing"

func TestChooseAdvance(t *testing.T) {
	tests := []struct {
		name    string
		links   []Link
		current int
		want    int
		ok      bool
	}{
		{
			name:    "next by text",
			links:   []Link{{Text: "Previous"}, {Text: "1"}, {Text: "2"}, {Text: "Next"}},
			current: 1,
			want:    3,
			ok:      true,
		},
		{
			name:    "next by class",
			links:   []Link{{Text: "»", Class: "paginate_button next"}},
			current: 1,
			want:    0,
			ok:      true,
		},
		{
			name:    "next by aria label",
			links:   []Link{{Text: "›", AriaLabel: "Next page"}},
			current: 4,
			want:    0,
			ok:      true,
		},
		{
			name:    "disabled next falls back to numeric",
			links:   []Link{{Text: "Next", Class: "next disabled"}, {Text: "1"}, {Text: "2"}, {Text: "3"}},
			current: 2,
			want:    3,
			ok:      true,
		},
		{
			name:    "no next, numeric link",
			links:   []Link{{Text: " 1 "}, {Text: " 2 "}},
			current: 1,
			want:    1,
			ok:      true,
		},
		{
			name:    "last page",
			links:   []Link{{Text: "Next", Disabled: true}, {Text: "1"}, {Text: "2"}},
			current: 2,
			want:    -1,
			ok:      false,
		},
		{
			name:    "disabled numeric link",
			links:   []Link{{Text: "2", Class: "disabled"}},
			current: 1,
			want:    -1,
			ok:      false,
		},
		{
			name:    "no links",
			current: 1,
			want:    -1,
			ok:      false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ChooseAdvance(tt.links, tt.current)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ChooseAdvance = %d, %v; want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
