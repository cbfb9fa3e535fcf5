package logger

import "testing"

func TestSampleGateRatio(t *testing.T) {
	g := newSampleGate(1, 3)
	passed := 0
	for i := 0; i < 9; i++ {
		if g.Allow() {
			passed++
		}
	}
	if passed != 3 {
		t.Fatalf("passed %d of 9, want 3", passed)
	}
}

func TestSampleGateDisabledPassesEverything(t *testing.T) {
	g := newSampleGate(0, 0)
	for i := 0; i < 5; i++ {
		if !g.Allow() {
			t.Fatal("zero gate must pass everything")
		}
	}
}

func TestParseSampleSpec(t *testing.T) {
	cases := []struct {
		spec     string
		pass, of int
	}{
		{"", 0, 0},
		{"50", 1, 50},
		{"2/10", 2, 10},
		{" 1 / 4 ", 1, 4},
		{"0", 0, 0},
		{"junk", 0, 0},
		{"a/b", 0, 0},
	}
	for _, tc := range cases {
		pass, of := parseSampleSpec(tc.spec)
		if pass != tc.pass || of != tc.of {
			t.Fatalf("parseSampleSpec(%q) = %d/%d, want %d/%d",
				tc.spec, pass, of, tc.pass, tc.of)
		}
	}
}
