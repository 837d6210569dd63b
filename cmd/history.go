package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"licensetable/internal/logger"
	"licensetable/internal/output"
	"licensetable/internal/sheets"
	"licensetable/internal/store"
	"licensetable/pkg/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored extractions",
	Long: `Show the most recent extractions saved by the configured sinks.

Reads from PostgreSQL when DATABASE_URL (or database.url) is set. Without a
database, the rows appended to the Google Sheet (GOOGLE_SHEET_URL) are listed.
With neither, the CSV files in output.save_dir are read back.

--limit 0 lists everything. --image narrows every source to one image.`,
	Example: `  # Ten most recent results
  licensetable history --limit 10

  # Latest result for one image, as JSON
  licensetable history --image licence.jpg --json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 20, "Number of extractions to list (0 for all)")
	historyCmd.Flags().String("image", "", "Show only this image (the latest extraction when reading the database)")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("history")

	limit, _ := cmd.Flags().GetInt("limit")
	image, _ := cmd.Flags().GetString("image")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
	var items []models.Extraction
	switch {
	case cfg.Database.URL != "":
		var err error
		items, err = loadStoreHistory(ctx, cfg.Database.URL, image, limit, log)
		if err != nil {
			return err
		}
	case cfg.Sheets.URL != "":
		return printSheetRows(ctx, cfg.Sheets.URL, cfg.Sheets.Worksheet, image, limit, log)
	default:
		var err error
		items, err = output.ReadDir(cfg.Output.SaveDir, image, limit)
		if err != nil {
			return err
		}
		log.Debug().Str("dir", cfg.Output.SaveDir).Msg("Reading history from CSV files")
	}
	log.Debug().Int("count", len(items)).Msg("Extractions loaded")

	if len(items) == 0 && image != "" {
		fmt.Printf("No extraction stored for %s\n", image)
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	fmt.Print(formatHistory(items))
	return nil
}

// loadStoreHistory reads from PostgreSQL and closes the connection afterwards.
func loadStoreHistory(ctx context.Context, dsn, image string, limit int, log zerolog.Logger) ([]models.Extraction, error) {
	st, err := store.Open(dsn)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close database")
		}
	}()

	if image == "" {
		return st.List(ctx, limit)
	}
	ext, err := st.Latest(ctx, image)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []models.Extraction{ext}, nil
}

func formatHistory(items []models.Extraction) string {
	var b strings.Builder
	for _, ext := range items {
		if ext.Status == "" {
			fmt.Fprintf(&b, "%s  (%d rows)\n", ext.ImageName, len(ext.Rows))
		} else {
			fmt.Fprintf(&b, "%s  %s  (%s, %d rows)\n", ext.ImageName, ext.Status, ext.Orientation, len(ext.Rows))
		}
		for _, r := range ext.Rows {
			fmt.Fprintf(&b, "    %-10s %-12s %-12s\n", r.Category, r.IssuedDate, r.ExpiryDate)
		}
	}
	return b.String()
}

// printSheetRows lists the worksheet rows of image (or of every image),
// keeping the last limit of them.
func printSheetRows(ctx context.Context, sheetURL, worksheet, image string, limit int, log zerolog.Logger) error {
	svc, err := sheets.NewSheetsService(ctx, sheetURL, worksheet)
	if err != nil {
		return err
	}

	rows, err := svc.ReadRows(ctx)
	if err != nil {
		return err
	}
	rows = filterSheetRows(rows, image, limit)
	log.Debug().Int("count", len(rows)).Msg("Sheet rows loaded")

	if len(rows) == 0 && image != "" {
		fmt.Printf("No extraction stored for %s\n", image)
		return nil
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = fmt.Sprint(c)
		}
		fmt.Println(strings.Join(cells, "  "))
	}
	return nil
}

// filterSheetRows keeps the rows whose Image column equals image, then the
// last limit of those. An empty image keeps every row; limit <= 0 keeps all.
func filterSheetRows(rows [][]interface{}, image string, limit int) [][]interface{} {
	if image != "" {
		kept := make([][]interface{}, 0, len(rows))
		for _, row := range rows {
			if len(row) > 0 && fmt.Sprint(row[0]) == image {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return rows
}
