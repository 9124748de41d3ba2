package cursor

import "testing"

func TestCompareNumeric(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"9", "10", -1},
		{"10", "9", 1},
		{"10", "10", 0},
		{"0042", "42", 0},
		{"100", "99", 1},
		{"1.5", "1.25", 1},
		{"-3", "2", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			if got := sign(Compare(tt.a, tt.b)); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCompareLexicographic(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"b", "a", 1},
		{"a", "b", -1},
		{"token", "token", 0},
		{"msg-001", "msg-002", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			if got := sign(Compare(tt.a, tt.b)); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// Mixed numeric/non-numeric inputs compare both sides as raw strings.
// That makes "abc" sort above "2" even though a numeric reading would say
// otherwise; this is the remote's observed ordering and must stay stable.
func TestCompareMixedFallsBackToLexicographic(t *testing.T) {
	if got := sign(Compare("abc", "2")); got != 1 {
		t.Errorf("Compare(abc, 2) = %d, want 1 (lexicographic fallback)", got)
	}
	if got := sign(Compare("2", "abc")); got != -1 {
		t.Errorf("Compare(2, abc) = %d, want -1 (lexicographic fallback)", got)
	}
}

// "NaN" parses as a float but must not take the numeric path.
func TestCompareNaNToken(t *testing.T) {
	if got := sign(Compare("NaN", "100")); got != 1 {
		t.Errorf("Compare(NaN, 100) = %d, want 1 (lexicographic, N > 1)", got)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
