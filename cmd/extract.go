package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"licensetable/internal/logger"
	"licensetable/internal/ocr"
	"licensetable/internal/output"
	"licensetable/internal/pipeline"
	"licensetable/pkg/models"
)

var extractCmd = &cobra.Command{
	Use:   "extract [image-file]",
	Short: "Extract the category table from one licence image",
	Long: `Run table detection, OCR and row reconstruction on a single image.

The status message is always printed. Data problems such as unreadable dates
or missing categories are reported through the status and do not fail the
command; only hard errors (missing image, models that cannot be loaded,
service failures) exit with a non-zero code.

The OCR engine is chosen with ocr.engine / OCR_ENGINE:
  vision      Google Cloud Vision (GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS)
  documentai  Google Document AI OCR processor (also GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID)
  tesseract   local Tesseract installation`,
	Example: `  # Extract the table and write output/licence.csv
  licensetable extract licence.jpg

  # Print rows as JSON and write the CSV elsewhere
  licensetable extract licence.jpg --json --output-dir results

  # Use the local engine with a longer timeout
  OCR_ENGINE=tesseract licensetable extract scan.png --timeout 300`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// ExtractOutput is the JSON document printed with --json.
type ExtractOutput struct {
	models.Extraction
	CSVFile            string    `json:"csv_file,omitempty"`
	ProcessedAt        time.Time `json:"processed_at"`
	ProcessingDuration string    `json:"processing_duration"`
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".gif"}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Write the report to this file instead of stdout")
	extractCmd.Flags().String("output-dir", "", "Directory for the CSV file (overrides output.save_dir)")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
	extractCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	imagePath := args[0]
	if outputDir != "" {
		cfg.Output.SaveDir = outputDir
	}

	log.Info().
		Str("file", imagePath).
		Str("engine", cfg.OCR.Engine).
		Str("save_dir", cfg.Output.SaveDir).
		Int("timeout", timeoutSecs).
		Msg("Starting extraction")

	if err := validateImageFile(imagePath, log); err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	p, err := pipeline.Load(ctx, cfg)
	if err != nil {
		return handleExtractError(err, log)
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engine")
		}
	}()

	start := time.Now()
	ext, err := p.Run(ctx, imagePath)
	if err != nil {
		return handleExtractError(err, log)
	}

	out := ExtractOutput{
		Extraction:         ext,
		ProcessedAt:        time.Now(),
		ProcessingDuration: time.Since(start).String(),
	}
	if len(ext.Rows) > 0 {
		out.CSVFile = output.NewCSVWriter(cfg.Output.SaveDir).Path(ext.ImageName)
	}

	return writeReport(out, outputPath, jsonOutput, log)
}

// validateImageFile checks that the path is a readable, non-empty regular file.
func validateImageFile(path string, log zerolog.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Image file not found")
			return fmt.Errorf("%w: %s", pipeline.ErrImageNotFound, path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing image file")
			return fmt.Errorf("permission denied accessing image file: %s", path)
		}
		return fmt.Errorf("error accessing image file: %w", err)
	}

	if !info.Mode().IsRegular() {
		log.Error().Str("file", path).Msg("Path is not a regular file")
		return fmt.Errorf("path is not a regular file: %s", path)
	}

	if info.Size() == 0 {
		log.Error().Str("file", path).Msg("Image file is empty")
		return fmt.Errorf("image file is empty: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	known := false
	for _, e := range imageExtensions {
		if ext == e {
			known = true
			break
		}
	}
	if !known {
		log.Warn().
			Str("file", path).
			Str("extension", ext).
			Msg("File extension is not a known image type, decoding anyway")
	}

	return nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling extraction")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleExtractError turns pipeline failures into messages a user can act on.
func handleExtractError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Extraction failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("extraction timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("extraction was canceled")
	case errors.Is(err, pipeline.ErrImageNotFound):
		return err
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
			"1. GOOGLE_APPLICATION_CREDENTIALS with the path to a service account JSON file\n" +
			"2. GOOGLE_CREDENTIALS with the inline JSON credentials\n\n" +
			"or switch to the local engine with OCR_ENGINE=tesseract")
	case errors.Is(err, ocr.ErrUnknownEngine):
		return fmt.Errorf("unknown OCR engine, expected vision, documentai or tesseract: %w", err)
	case errors.Is(err, pipeline.ErrModelLoad):
		return fmt.Errorf("could not load the detection or OCR models. Check detector.url and the OCR settings: %w", err)
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure the service account can use the configured OCR API")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "quota"):
		return fmt.Errorf("OCR API quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return fmt.Errorf("extraction failed: %w", err)
	}
}

func writeReport(out ExtractOutput, outputPath string, jsonOutput bool, log zerolog.Logger) error {
	var data []byte
	if jsonOutput {
		if out.Rows == nil {
			out.Rows = []models.Row{}
		}
		var err error
		data, err = json.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		data = append(data, '\n')
	} else {
		data = []byte(formatText(out))
	}

	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Report written to file")
	return nil
}

func formatText(out ExtractOutput) string {
	var b strings.Builder
	fmt.Fprintln(&b, out.Status)
	if len(out.Rows) == 0 {
		return b.String()
	}

	fmt.Fprintf(&b, "\n%-10s %-12s %-12s\n", "Category", "Issued", "Expiry")
	for _, r := range out.Rows {
		fmt.Fprintf(&b, "%-10s %-12s %-12s\n", r.Category, r.IssuedDate, r.ExpiryDate)
	}
	if out.CSVFile != "" {
		fmt.Fprintf(&b, "\nSaved to %s\n", out.CSVFile)
	}
	return b.String()
}
