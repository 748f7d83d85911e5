package sources

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "under limit", input: "hello", max: 10, want: "hello"},
		{name: "exact limit", input: "hello", max: 5, want: "hello"},
		{name: "ascii cut", input: "hello world", max: 5, want: "hello"},
		{name: "cut inside rune backs off", input: "café", max: 4, want: "caf"},
		{name: "cut on rune boundary", input: "cafés", max: 5, want: "café"},
		{name: "multibyte only", input: "日本語", max: 4, want: "日"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateUTF8(tt.input, tt.max)
			if got != tt.want {
				t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result %q is not valid UTF-8", got)
			}
		})
	}
}

func TestTruncateUTF8LongMultibyte(t *testing.T) {
	s := strings.Repeat("é", 100) // 200 bytes
	got := truncateUTF8(s, 101)
	if len(got) != 100 {
		t.Errorf("expected the cut to back off to 100 bytes, got %d", len(got))
	}
	if !utf8.ValidString(got) {
		t.Error("truncated string must stay valid UTF-8")
	}
}
