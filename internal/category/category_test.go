package category

import "testing"

func TestInferExactMatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"dishes", Kitchen},
		{"Laundry", Laundry},
		{"vacuum", Cleaning},
		{"mow", Yard},
		{"trash", Trash},
		{"walk dog", Pets},
		{"make bed", Bedroom},
		{"groceries", Errands},
	}
	for _, tt := range tests {
		if got := Infer(tt.input); got != tt.want {
			t.Errorf("Infer(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInferKeywordMatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Unload the dishwasher", Kitchen},
		{"Fold clean towels", Laundry},
		{"Scoop the litter box", Pets},
		{"Wash the dog bed", Pets},
		{"Take out the recycling bins", Trash},
		{"Rake leaves in the back yard", Yard},
		{"Pick up toys", Bedroom},
		{"Scrub the bathroom sink", Cleaning},
		{"Bring in the mail", Errands},
	}
	for _, tt := range tests {
		if got := Infer(tt.input); got != tt.want {
			t.Errorf("Infer(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInferNormalizesInput(t *testing.T) {
	if got := Infer("  WALK   Dog "); got != Pets {
		t.Errorf("Infer with padding = %q, want %q", got, Pets)
	}
}

func TestInferFallback(t *testing.T) {
	for _, input := range []string{"", "   ", "Practice piano"} {
		if got := Infer(input); got != Other {
			t.Errorf("Infer(%q) = %q, want %q", input, got, Other)
		}
	}
}

func TestOrInfer(t *testing.T) {
	if got := OrInfer("garage", "Sweep the garage"); got != "garage" {
		t.Errorf("explicit category = %q, want garage", got)
	}
	if got := OrInfer(" ", "Sweep the garage"); got != Cleaning {
		t.Errorf("blank category = %q, want %q", got, Cleaning)
	}
}
