package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"notaria/internal/config"
	"notaria/internal/logger"
	"notaria/internal/ocr"
	"notaria/internal/processor"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Start the OCR engine and print its health report",
	Long: `Initialize the OCR worker pool with the configured backend, print the pool
and cache counters as JSON and shut the pool down again.

A failing backend (missing tesseract language data, invalid Google Cloud
credentials) makes the command exit non-zero.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().Int("timeout", 60, "Initialization timeout in seconds")
}

func runHealth(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("health")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	engine, err := startEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopEngine(ctx, engine, log)

	data, err := json.MarshalIndent(engine.Health(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return writeOutput(append(data, '\n'), "", log)
}

// startEngine builds the configured OCR engine and starts its workers.
func startEngine(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*ocr.Engine, error) {
	factory, err := processor.BackendFactory(cfg.OCRBackend)
	if err != nil {
		return nil, err
	}
	engine := ocr.NewEngine(processor.EngineConfig(cfg), factory)
	if err := engine.Initialize(ctx); err != nil {
		return nil, handleOCRError(err, log)
	}
	return engine, nil
}

func stopEngine(ctx context.Context, engine *ocr.Engine, log zerolog.Logger) {
	if err := engine.Terminate(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("Failed to terminate OCR engine")
	}
}
