package executor

import (
	"strings"
	"testing"
)

func TestLineWriterSplitsLines(t *testing.T) {
	var lines []string
	lw := newLineWriter(func(line string) { lines = append(lines, line) }, 0)

	lw.Write([]byte("first\nsec"))
	lw.Write([]byte("ond\n"))
	lw.Write([]byte("trailing"))
	lw.Flush()

	want := []string{"first", "second", "trailing"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLineWriterTruncatesLongLines(t *testing.T) {
	var lines []string
	lw := newLineWriter(func(line string) { lines = append(lines, line) }, 10)

	lw.Write([]byte(strings.Repeat("x", 50) + "\n"))

	if len(lines) != 1 {
		t.Fatalf("lines = %v", lines)
	}
	if len(lines[0]) > 10 {
		t.Errorf("line length = %d, want <= 10", len(lines[0]))
	}
	if !strings.HasSuffix(lines[0], "...") {
		t.Errorf("truncated line %q missing ellipsis", lines[0])
	}
}

func TestLineWriterEmptyLinesForced(t *testing.T) {
	var lines []string
	lw := newLineWriter(func(line string) { lines = append(lines, line) }, 0)

	lw.Write([]byte("\n\n"))
	if len(lines) != 2 || lines[0] != "" || lines[1] != "" {
		t.Errorf("lines = %q, want two empty lines", lines)
	}
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		writes []string
		want   string
	}{
		{"under limit", 10, []string{"abc"}, "abc"},
		{"exact", 3, []string{"abc"}, "abc"},
		{"single overflow", 3, []string{"abcdef"}, "def"},
		{"accumulated overflow", 5, []string{"abc", "def"}, "bcdef"},
		{"zero limit drops all", 0, []string{"abc"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &tailBuffer{limit: tt.limit}
			for _, w := range tt.writes {
				b.Write([]byte(w))
			}
			if got := b.String(); got != tt.want {
				t.Errorf("tail = %q, want %q", got, tt.want)
			}
		})
	}
}
