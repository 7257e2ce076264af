package prune

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEdgesKeepsShortText(t *testing.T) {
	t.Parallel()

	in := "line one\nline two"
	if got := Edges(in, "stderr", DefaultConfig()); got != in {
		t.Fatalf("short text changed: %q", got)
	}
}

func TestEdgesTrimsLongText(t *testing.T) {
	t.Parallel()

	lines := make([]string, 200)
	for i := range lines {
		lines[i] = strings.Repeat("x", 10)
	}
	lines[0] = "FIRST"
	lines[len(lines)-1] = "LAST"
	in := strings.Join(lines, "\n")

	cfg := DefaultConfig()
	got := Edges(in, "stderr", cfg)
	if !strings.HasPrefix(got, "[truncated] stderr (bytes=") {
		t.Fatalf("missing marker: %q", got[:40])
	}
	if !strings.Contains(got, "FIRST") || !strings.HasSuffix(got, "LAST") {
		t.Fatalf("head or tail lost")
	}
	if Exceeds(got, cfg.MaxBytes, cfg.MaxLines) {
		t.Fatalf("result exceeds budget: %d bytes, %d lines", len(got), CountLines(got))
	}
}

func TestEdgesKeepsUTF8Intact(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("エラー", 1000)
	got := Edges(in, "stderr", Config{MaxBytes: 101, MaxLines: 10, HeadBytes: 31, TailBytes: 31, HeadLines: 2, TailLines: 2})
	if !utf8.ValidString(got) {
		t.Fatalf("invalid utf-8 in %q", got)
	}
	if len(got) > 101 {
		t.Fatalf("result too long: %d", len(got))
	}
}

func TestEdgesWithoutHeadOrTail(t *testing.T) {
	t.Parallel()

	got := Edges(strings.Repeat("a", 50), "out", Config{MaxBytes: 10, MaxLines: 5})
	if got != "[truncated" {
		t.Fatalf("unexpected summary clamp: %q", got)
	}
}
