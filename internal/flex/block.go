// Package flex converts assistant markdown into LINE Flex bubbles.
// Conversion is a pure single pass over the input lines: lines are classified,
// folded into blocks, rendered into a bubble and validated. Anything that cannot
// be rendered safely falls back to a plain text message carrying the input.
package flex

// BlockKind identifies the variant of a parsed block.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockCode      BlockKind = "code"
	BlockBullet    BlockKind = "bullet"
	BlockParagraph BlockKind = "paragraph"
)

// Block is one classified unit of the parsed markdown.
// Text is set for headings, bullets and paragraphs; Lines only for code blocks.
type Block struct {
	Kind  BlockKind
	Text  string
	Lines []string
}

// Heading returns a heading block.
func Heading(text string) Block { return Block{Kind: BlockHeading, Text: text} }

// Bullet returns a bullet line block.
func Bullet(text string) Block { return Block{Kind: BlockBullet, Text: text} }

// Paragraph returns a paragraph block.
func Paragraph(text string) Block { return Block{Kind: BlockParagraph, Text: text} }

// Code returns a code block holding the given verbatim lines.
func Code(lines ...string) Block { return Block{Kind: BlockCode, Lines: lines} }
