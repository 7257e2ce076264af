package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/linerelay/linerelay/internal/flex"
	"github.com/linerelay/linerelay/internal/logger"
)

var renderAltText string

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Render markdown into the reply LINE would receive",
	Long: `Read markdown from a file or stdin and print the reply message as JSON:
a Flex bubble when the text renders, otherwise the plain text fallback.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderAltText, "alt-text", flex.DefaultAltText, "Alt text for the Flex message")
	rootCmd.AddCommand(renderCmd)
}

type renderedMessage struct {
	Type     string       `json:"type"`
	AltText  string       `json:"altText,omitempty"`
	Contents *flex.Bubble `json:"contents,omitempty"`
	Text     string       `json:"text,omitempty"`
}

func runRender(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open markdown: %w", err)
		}
		defer f.Close()
		in = f
	}
	md, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read markdown: %w", err)
	}

	conv := flex.NewConverter(logger.New(cmd.ErrOrStderr(), "warn", "text"), renderAltText)
	var out renderedMessage
	switch m := conv.Convert(string(md)).(type) {
	case flex.FlexMessage:
		out = renderedMessage{Type: "flex", AltText: m.AltText, Contents: &m.Contents}
	case flex.TextMessage:
		out = renderedMessage{Type: "text", Text: m.Text}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
