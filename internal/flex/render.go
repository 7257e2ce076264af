package flex

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoContent is returned by Render when there is nothing to put in a card.
var ErrNoContent = errors.New("flex: no content")

const (
	headingColor    = "#1DB446"
	codeTextColor   = "#333333"
	codeBackground  = "#f5f5f5"
	codeBorderColor = "#dddddd"
	bulletColor     = "#666666"
	bulletGlyph     = "•"
)

// Render maps blocks to a bubble whose body lists one node per block in order.
func Render(blocks []Block) (Bubble, error) {
	if len(blocks) == 0 {
		return Bubble{}, ErrNoContent
	}
	contents := make([]Component, 0, len(blocks))
	for i, b := range blocks {
		node, err := renderBlock(b)
		if err != nil {
			return Bubble{}, fmt.Errorf("block %d: %w", i, err)
		}
		contents = append(contents, node)
	}
	return Bubble{
		Type: ContainerType,
		Body: &Component{
			Type:       ComponentBox,
			Layout:     LayoutVertical,
			Contents:   contents,
			PaddingAll: "xl",
		},
	}, nil
}

func renderBlock(b Block) (Component, error) {
	switch b.Kind {
	case BlockHeading:
		return Component{
			Type:   ComponentText,
			Text:   b.Text,
			Weight: "bold",
			Size:   "lg",
			Color:  headingColor,
		}, nil
	case BlockCode:
		return Component{
			Type:   ComponentBox,
			Layout: LayoutVertical,
			Contents: []Component{{
				Type:  ComponentText,
				Text:  strings.Join(b.Lines, "\n"),
				Size:  "sm",
				Wrap:  true,
				Color: codeTextColor,
			}},
			BackgroundColor: codeBackground,
			BorderColor:     codeBorderColor,
			BorderWidth:     "1px",
			CornerRadius:    "4px",
			PaddingAll:      "md",
		}, nil
	case BlockBullet:
		return Component{
			Type:   ComponentBox,
			Layout: LayoutHorizontal,
			Contents: []Component{
				{Type: ComponentText, Text: bulletGlyph, Size: "sm", Color: bulletColor, Flex: 1},
				{Type: ComponentText, Text: b.Text, Size: "md", Wrap: true, Flex: 10},
			},
		}, nil
	case BlockParagraph:
		return Component{
			Type: ComponentText,
			Text: b.Text,
			Size: "md",
			Wrap: true,
		}, nil
	default:
		return Component{}, fmt.Errorf("%w: unknown block kind %q", ErrSchema, b.Kind)
	}
}
