package flex

import (
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

const (
	// DefaultAltText is shown in notifications and chat lists for a card.
	DefaultAltText  = "Geminiからの応答"
	maxAltTextRunes = 400
)

// Check is an extra validation step run on a rendered bubble.
type Check func(Bubble) error

// Converter turns markdown into a Message. The zero value is usable.
type Converter struct {
	AltText string
	Checks  []Check
	Logger  *slog.Logger
}

// NewConverter returns a converter using altText for cards (DefaultAltText when empty).
func NewConverter(log *slog.Logger, altText string, checks ...Check) *Converter {
	if log == nil {
		log = slog.Default()
	}
	return &Converter{
		AltText: altText,
		Checks:  checks,
		Logger:  log.With(slog.String("component", "flex")),
	}
}

var defaultConverter = &Converter{}

// Convert converts md with the default converter.
func Convert(md string) Message {
	return defaultConverter.Convert(md)
}

// Convert returns a FlexMessage for md, or a TextMessage carrying md verbatim
// when the card is empty, invalid, or cannot be built at all.
func (c *Converter) Convert(md string) Message {
	bubble, err := c.build(md)
	if err != nil {
		log := c.logger()
		if errors.Is(err, ErrNoContent) {
			log.Debug("no card content, sending plain text")
		} else {
			log.Warn("card conversion failed, sending plain text", slog.Any("error", err))
		}
		return TextMessage{Text: md}
	}
	return FlexMessage{
		AltText:  c.altText(),
		Contents: bubble,
		Source:   md,
	}
}

func (c *Converter) build(md string) (bubble Bubble, err error) {
	defer func() {
		if r := recover(); r != nil {
			bubble = Bubble{}
			err = fmt.Errorf("flex: conversion panic: %v", r)
		}
	}()
	bubble, err = Render(Parse(md))
	if err != nil {
		return Bubble{}, err
	}
	if err := Validate(bubble); err != nil {
		return Bubble{}, err
	}
	for _, check := range c.Checks {
		if check == nil {
			continue
		}
		if err := check(bubble); err != nil {
			return Bubble{}, fmt.Errorf("%w: %v", ErrSchema, err)
		}
	}
	return bubble, nil
}

func (c *Converter) altText() string {
	alt := c.AltText
	if alt == "" {
		alt = DefaultAltText
	}
	if utf8.RuneCountInString(alt) <= maxAltTextRunes {
		return alt
	}
	return string([]rune(alt)[:maxAltTextRunes])
}

func (c *Converter) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
