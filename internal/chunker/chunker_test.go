package chunker

import (
	"strings"
	"testing"
)

func TestSplit_ShortTextReturnsSingleChunk(t *testing.T) {
	out := Split("hello world", DefaultOptions(2500, 200))
	if len(out) != 1 || out[0] != "hello world" {
		t.Fatalf("expected single unchanged chunk, got %v", out)
	}
}

func TestSplit_EmptyTextReturnsNil(t *testing.T) {
	if out := Split("   ", DefaultOptions(2500, 200)); out != nil {
		t.Fatalf("expected nil for blank input, got %v", out)
	}
}

func TestSplit_PrefersCoarsestSeparator(t *testing.T) {
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)
	out := Split(text, Options{Size: 50, Overlap: 0, Separators: []string{"\n\n", " ", ""}})
	if len(out) != 2 {
		t.Fatalf("expected paragraph split into 2 chunks, got %d: %v", len(out), out)
	}
	if !strings.Contains(out[0], "aaaa") || !strings.Contains(out[1], "bbbb") {
		t.Fatalf("unexpected chunk contents: %v", out)
	}
}

func TestSplit_FallsBackToHardWindowWithNoSeparators(t *testing.T) {
	text := strings.Repeat("x", 130)
	out := Split(text, Options{Size: 50, Overlap: 0, Separators: []string{""}})
	if len(out) != 3 {
		t.Fatalf("expected 3 hard-window chunks of size 50, got %d", len(out))
	}
	for i, c := range out[:2] {
		if len([]rune(c)) != 50 {
			t.Fatalf("chunk %d: expected 50 runes, got %d", i, len([]rune(c)))
		}
	}
}

func TestSplit_OverlapSharesTrailingContext(t *testing.T) {
	text := strings.Repeat("x", 60) + "\n\n" + strings.Repeat("y", 60)
	out := Split(text, Options{Size: 60, Overlap: 10, Separators: []string{"\n\n", ""}})
	if len(out) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(out))
	}
	if !strings.HasPrefix(out[1], strings.Repeat("x", 10)) {
		t.Fatalf("expected second chunk to start with 10 chars of overlap from the first, got %q", out[1][:min(20, len(out[1]))])
	}
}

func TestSplit_NegativeOrOversizedOverlapIsIgnored(t *testing.T) {
	text := strings.Repeat("x", 60) + "\n\n" + strings.Repeat("y", 60)
	out := Split(text, Options{Size: 60, Overlap: 1000, Separators: []string{"\n\n", ""}})
	if len(out) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(out))
	}
	if strings.HasPrefix(out[1], "x") {
		t.Fatalf("expected overlap to be disabled when overlap >= size, got %q", out[1][:min(20, len(out[1]))])
	}
}
