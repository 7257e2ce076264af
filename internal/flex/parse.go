package flex

import (
	"strings"
)

const (
	boldMarker   = "**"
	bulletMarker = "*"
	fenceMarker  = "```"
)

type lineKind int

const (
	lineBlank lineKind = iota
	lineHeading
	lineFence
	lineBullet
	lineText
)

// classifyLine decides what the raw line begins or continues. Rules are
// evaluated in a fixed order against the trimmed line; the first match wins.
// The returned text is the payload for headings, bullets and plain lines and
// may be empty for markers without content.
func classifyLine(raw string) (lineKind, string) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return lineBlank, ""
	case len(trimmed) >= 4 && strings.HasPrefix(trimmed, boldMarker) && strings.HasSuffix(trimmed, boldMarker):
		return lineHeading, strings.TrimSpace(strings.Trim(trimmed, bulletMarker))
	case strings.HasPrefix(trimmed, fenceMarker):
		return lineFence, ""
	case strings.Trim(trimmed, bulletMarker) == "":
		// "**", "***": a marker with nothing behind it.
		return lineBullet, ""
	case strings.HasPrefix(trimmed, bulletMarker) && !strings.HasPrefix(trimmed, boldMarker):
		return lineBullet, strings.TrimSpace(strings.TrimPrefix(trimmed, bulletMarker))
	default:
		return lineText, strings.TrimRight(raw, " \t\r")
	}
}

// accumulator folds classified lines into blocks. It buffers plain lines of the
// paragraph in progress and flushes them whenever another block starts.
type accumulator struct {
	blocks  []Block
	para    []string
	pending bool // a blank line was seen inside the current paragraph
}

func (a *accumulator) text(line string) {
	if a.pending {
		a.flush()
	}
	a.para = append(a.para, line)
}

func (a *accumulator) blank() {
	if len(a.para) > 0 {
		a.pending = true
	}
}

func (a *accumulator) flush() {
	a.pending = false
	if len(a.para) == 0 {
		return
	}
	a.blocks = append(a.blocks, Paragraph(strings.Join(a.para, "\n")))
	a.para = nil
}

// emit flushes the paragraph in progress and appends b unless it carries no content.
func (a *accumulator) emit(b Block) {
	a.flush()
	switch b.Kind {
	case BlockCode:
		if len(b.Lines) == 0 {
			return
		}
	default:
		if b.Text == "" {
			return
		}
	}
	a.blocks = append(a.blocks, b)
}

// Parse splits md into blocks in source order. Fenced code is collected
// atomically: the scanner consumes raw lines up to the closing fence, or to the
// end of input when the fence is never closed, and resumes after it.
func Parse(md string) []Block {
	lines := strings.Split(md, "\n")
	acc := &accumulator{}
	for pos := 0; pos < len(lines); pos++ {
		kind, text := classifyLine(lines[pos])
		switch kind {
		case lineBlank:
			acc.blank()
		case lineHeading:
			acc.emit(Heading(text))
		case lineBullet:
			acc.emit(Bullet(text))
		case lineText:
			acc.text(text)
		case lineFence:
			code, next := collectCode(lines, pos+1)
			acc.emit(Code(code...))
			pos = next
		}
	}
	acc.flush()
	return acc.blocks
}

// collectCode returns the raw lines starting at from up to the next fence line
// and the index of that fence (or the last line when the fence is unterminated).
func collectCode(lines []string, from int) ([]string, int) {
	var code []string
	pos := from
	for ; pos < len(lines); pos++ {
		if strings.HasPrefix(strings.TrimSpace(lines[pos]), fenceMarker) {
			return code, pos
		}
		code = append(code, strings.TrimRight(lines[pos], "\r"))
	}
	return code, pos - 1
}
