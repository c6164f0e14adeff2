package models

import "testing"

func TestSuggestMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"z80", ModeZ80, true},
		{"dump", ModeDump, true},
		{"ZX80BASC", ModeZX80Basic, true},
		{"S", ModeSA, true},
		{"PS", ModeSP, true},
		{"Z80", "", false},
		{"", "", false},
		{"bogus", "", false},
	}
	for _, tt := range tests {
		got, ok := SuggestMode(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("SuggestMode(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestEditDistance(t *testing.T) {
	if d := editDistance("SP", "PS"); d != 1 {
		t.Errorf("transposition: got %d", d)
	}
	if d := editDistance("", "DUMP"); d != 4 {
		t.Errorf("empty: got %d", d)
	}
	if d := editDistance("1Z", "1Z"); d != 0 {
		t.Errorf("equal: got %d", d)
	}
}
