package menutext

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input string
		want  *float64
	}{
		{"$12.50", ptr(12.5)},
		{"12.5", ptr(12.5)},
		{"$12", ptr(12)},
		{"$12.00", ptr(12)},
		{"  $ 9.95 ", ptr(9.95)},
		{"Market Price", nil},
		{"", nil},
		{"MP", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParsePrice(tt.input)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ParsePrice(%q) = %v, want nil", tt.input, *got)
			case tt.want != nil && got == nil:
				t.Errorf("ParsePrice(%q) = nil, want %v", tt.input, *tt.want)
			case tt.want != nil && got != nil && *got != *tt.want:
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.input, *got, *tt.want)
			}
		})
	}
}

func TestHasPrice(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"Crab Cakes $14.50", true},
		{"Crab Cakes 14.50", true},
		{"$8", true},
		{"Open since 1985", false},
		{"Seats 12", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := HasPrice(tt.input); got != tt.want {
			t.Errorf("HasPrice(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("  a \n\t b  "); got != "a b" {
		t.Errorf("CollapseWhitespace = %q, want %q", got, "a b")
	}
}

func ptr(f float64) *float64 { return &f }
