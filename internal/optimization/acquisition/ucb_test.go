package acquisition

import (
	"math"
	"testing"
)

func TestUpperConfidenceBound(t *testing.T) {
	ucb := NewUpperConfidenceBound(2.0)
	if got := ucb.Compute(1.0, 0.5); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("expected 2.0, got %v", got)
	}

	// The incumbent does not change UCB.
	ucb.UpdateBest(100)
	if got := ucb.Compute(1.0, 0.5); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("expected 2.0 after UpdateBest, got %v", got)
	}

	if ucb.Compute(0.0, 1.0) <= ucb.Compute(0.0, 0.1) {
		t.Error("UCB should reward uncertainty")
	}
}

func TestParseKindAndNew(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"ei", KindExpectedImprovement, true},
		{"expected_improvement", KindExpectedImprovement, true},
		{"UCB", KindUpperConfidenceBound, true},
		{"upper_confidence_bound", KindUpperConfidenceBound, true},
		{"pi", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, err := ParseKind(tt.in)
			if tt.ok != (err == nil) {
				t.Fatalf("ParseKind(%q) err = %v", tt.in, err)
			}
			if k != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, k, tt.want)
			}
			if !tt.ok {
				return
			}
			fn, err := New(k, DefaultXi, DefaultKappa)
			if err != nil || fn == nil {
				t.Fatalf("New(%q) = %v, %v", k, fn, err)
			}
		})
	}

	if _, err := New("bogus", 0, 0); err == nil {
		t.Error("expected error for unknown kind")
	}
}
