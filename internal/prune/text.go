// Package prune shortens long tool output while keeping its beginning and end.
package prune

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMarker   = "[truncated]"
	DefaultMaxBytes = 4 * 1024
	DefaultMaxLines = 80
)

type Config struct {
	MaxBytes  int
	MaxLines  int
	HeadBytes int
	TailBytes int
	HeadLines int
	TailLines int
	Marker    string
}

// DefaultConfig keeps about a quarter of the budget from each end.
func DefaultConfig() Config {
	return Config{
		MaxBytes:  DefaultMaxBytes,
		MaxLines:  DefaultMaxLines,
		HeadBytes: DefaultMaxBytes / 4,
		TailBytes: DefaultMaxBytes / 4,
		HeadLines: DefaultMaxLines / 4,
		TailLines: DefaultMaxLines / 4,
		Marker:    DefaultMarker,
	}
}

func Exceeds(s string, maxBytes, maxLines int) bool {
	return len(s) > maxBytes || CountLines(s) > maxLines
}

func CountLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// Edges returns s unchanged when it fits cfg, otherwise a marker line
// followed by the head and tail of s. The result never exceeds the budget and
// never splits a UTF-8 sequence.
func Edges(s, label string, cfg Config) string {
	cfg = normalize(cfg)
	if !Exceeds(s, cfg.MaxBytes, cfg.MaxLines) {
		return s
	}
	summary := fmt.Sprintf("%s %s (bytes=%d, lines=%d)", cfg.Marker, label, len(s), CountLines(s))
	head := prefix(s, cfg.HeadBytes, cfg.HeadLines)
	tail := suffix(s, cfg.TailBytes, cfg.TailLines)
	if head == "" && tail == "" {
		return clamp(summary, cfg)
	}
	return clamp(summary+"\n"+head+"\n...\n"+tail, cfg)
}

func normalize(cfg Config) Config {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = DefaultMaxLines
	}
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}
	cfg.HeadBytes = max(cfg.HeadBytes, 0)
	cfg.TailBytes = max(cfg.TailBytes, 0)
	cfg.HeadLines = max(cfg.HeadLines, 0)
	cfg.TailLines = max(cfg.TailLines, 0)
	return cfg
}

func clamp(s string, cfg Config) string {
	if !Exceeds(s, cfg.MaxBytes, cfg.MaxLines) {
		return s
	}
	if out := prefix(s, cfg.MaxBytes, cfg.MaxLines); out != "" {
		return out
	}
	return cfg.Marker
}

func prefix(s string, maxBytes, maxLines int) string {
	if s == "" || maxBytes <= 0 || maxLines <= 0 {
		return ""
	}
	if maxBytes < len(s) {
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxLines {
		s = strings.Join(lines[:maxLines], "\n")
	}
	return s
}

func suffix(s string, maxBytes, maxLines int) string {
	if s == "" || maxBytes <= 0 || maxLines <= 0 {
		return ""
	}
	if maxBytes < len(s) {
		start := len(s) - maxBytes
		for start < len(s) && !utf8.RuneStart(s[start]) {
			start++
		}
		s = s[start:]
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxLines {
		s = strings.Join(lines[len(lines)-maxLines:], "\n")
	}
	return s
}
