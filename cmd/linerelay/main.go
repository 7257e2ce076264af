package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/linerelay/linerelay/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "linerelay",
	Short: "LINE bot that relays questions to Gemini and answers with Flex cards",
	Long: `linerelay receives LINE webhook callbacks, asks Gemini, and replies with
Flex Message cards rendered from the model's markdown.

Examples:
  linerelay serve
  linerelay render < answer.md
  linerelay download https://x.com/i/spaces/1YqKDgZdQbdxV
  linerelay token --subject ops`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
}

func init() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = config.DefaultConfigPath
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "Path to the TOML config file (env CONFIG_PATH)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
