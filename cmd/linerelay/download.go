package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/linerelay/linerelay/internal/config"
	"github.com/linerelay/linerelay/internal/download"
	"github.com/linerelay/linerelay/internal/logger"
)

var downloadCmd = &cobra.Command{
	Use:   "download <space-url>",
	Short: "Download a Twitter/X Space with twspace_dl",
	Long: `Download a Space synchronously and print the result as JSON.
The audio is written to <download.dir>/space_<id>.m4a.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateDownload(); err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := download.NewService(logger.L, cfg.Download, nil)
	result := svc.Execute(ctx, args[0], uuid.NewString())

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if result.Status != download.StatusCompleted {
		return fmt.Errorf("download %s failed: %s", result.DownloadID, result.Error)
	}
	return nil
}
