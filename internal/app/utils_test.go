package app

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitPipeArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    string
		n    int
		want []string
	}{
		{"basic", "12 | Best Picture", 2, []string{"12", "Best Picture"}},
		{"trim", "  A   |   B  ", 2, []string{"A", "B"}},
		{"keep_remainder", "A|B|C", 2, []string{"A", "B|C"}},
		{"three", "A | B | C", 3, []string{"A", "B", "C"}},
		{"empty_parts_removed", "A||B", 3, []string{"A", "B"}},
		{"leading_empty", " | P", 2, []string{"P"}},
		{"trailing_empty", "T | ", 2, []string{"T"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := splitPipeArgs(tt.s, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("len: got=%d want=%d, got=%v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("idx=%d got=%q want=%q (got=%v)", i, got[i], tt.want[i], got)
				}
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	short := "🏆 Best Film"
	if got := truncate(short); got != short {
		t.Fatalf("short text changed: %q", got)
	}

	long := strings.Repeat("é", maxMessageLen+10)
	got := truncate(long)
	if !strings.HasSuffix(got, "(truncated, too much text)") {
		t.Fatalf("missing truncation note")
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune")
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "\n\n(truncated, too much text)")); n != maxMessageLen {
		t.Fatalf("kept %d runes", n)
	}
}

func TestParseID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"7", 7, true},
		{" 42 ", 42, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseID(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("parseID(%q) = %d, %v", tt.in, got, ok)
		}
	}
}

func FuzzSplitPipeArgs(f *testing.F) {
	seeds := []struct {
		s string
		n int
	}{
		{"A|B", 2},
		{"A||B", 3},
		{"  A | B | C  ", 3},
		{"|x|", 4},
		{"no pipes", 2},
	}
	for _, s := range seeds {
		f.Add(s.s, s.n)
	}

	f.Fuzz(func(t *testing.T, s string, n int) {
		if n < 0 {
			n = -n
		}
		if n > 20 {
			n = 20
		}

		got := splitPipeArgs(s, n)

		// never panics, never returns more than n parts, parts are trimmed and non-empty
		if n == 0 && len(got) != 0 {
			t.Fatalf("n=0 => expected empty, got=%v", got)
		}
		if n > 0 && len(got) > n {
			t.Fatalf("len(got)=%d > n=%d (got=%v)", len(got), n, got)
		}
		for _, p := range got {
			if p == "" {
				t.Fatalf("empty part in %v", got)
			}
			if p[0] == ' ' || p[len(p)-1] == ' ' {
				t.Fatalf("not trimmed: %q", p)
			}
		}
	})
}
