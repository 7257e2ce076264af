package flex

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrSchema marks a bubble that LINE would reject.
var ErrSchema = errors.New("flex: schema violation")

// MaxBubbleBytes is the size limit LINE applies to a single bubble.
const MaxBubbleBytes = 30000

var (
	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}([0-9a-fA-F]{2})?$`)

	validLayouts = map[string]struct{}{
		LayoutVertical:   {},
		LayoutHorizontal: {},
		LayoutBaseline:   {},
	}
	validSizes = map[string]struct{}{
		"": {}, "xxs": {}, "xs": {}, "sm": {}, "md": {}, "lg": {}, "xl": {},
		"xxl": {}, "3xl": {}, "4xl": {}, "5xl": {},
	}
	validWeights = map[string]struct{}{"": {}, "regular": {}, "bold": {}}
)

// Validate checks b against the parts of the Flex schema the renderer can
// violate. Every failure wraps ErrSchema.
func Validate(b Bubble) error {
	if b.Type != ContainerType {
		return fmt.Errorf("%w: container type %q", ErrSchema, b.Type)
	}
	if b.Body == nil {
		return fmt.Errorf("%w: bubble has no body", ErrSchema)
	}
	if err := validateComponent(*b.Body, "body"); err != nil {
		return err
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrSchema, err)
	}
	if len(raw) > MaxBubbleBytes {
		return fmt.Errorf("%w: bubble is %d bytes, max %d", ErrSchema, len(raw), MaxBubbleBytes)
	}
	return nil
}

func validateComponent(c Component, path string) error {
	switch c.Type {
	case ComponentBox:
		if _, ok := validLayouts[c.Layout]; !ok {
			return fmt.Errorf("%w: %s: unknown layout %q", ErrSchema, path, c.Layout)
		}
		if len(c.Contents) == 0 {
			return fmt.Errorf("%w: %s: box has no contents", ErrSchema, path)
		}
		for _, color := range []string{c.BackgroundColor, c.BorderColor} {
			if err := validateColor(color, path); err != nil {
				return err
			}
		}
		for i, child := range c.Contents {
			if err := validateComponent(child, fmt.Sprintf("%s.contents[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case ComponentText:
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("%w: %s: empty text", ErrSchema, path)
		}
		if !utf8.ValidString(c.Text) {
			return fmt.Errorf("%w: %s: text is not valid UTF-8", ErrSchema, path)
		}
		if _, ok := validSizes[c.Size]; !ok {
			return fmt.Errorf("%w: %s: unknown size %q", ErrSchema, path, c.Size)
		}
		if _, ok := validWeights[c.Weight]; !ok {
			return fmt.Errorf("%w: %s: unknown weight %q", ErrSchema, path, c.Weight)
		}
		return validateColor(c.Color, path)
	default:
		return fmt.Errorf("%w: %s: unknown component type %q", ErrSchema, path, c.Type)
	}
}

func validateColor(color, path string) error {
	if color == "" || colorPattern.MatchString(color) {
		return nil
	}
	return fmt.Errorf("%w: %s: invalid color %q", ErrSchema, path, color)
}
