// Package output persists extracted licence tables as CSV files.
package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"licensetable/pkg/models"
)

// Header is the first CSV line.
var Header = []string{"Vehicle Category", "Issued Date", "Expiry Date"}

// CSVWriter writes one CSV per processed image into Dir.
type CSVWriter struct {
	Dir string
}

// NewCSVWriter returns a writer for dir.
func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{Dir: dir}
}

// FileName derives the CSV name from the image name: everything up to the
// first '.' of the base name, plus ".csv".
func FileName(imageName string) string {
	base := filepath.Base(imageName)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base + ".csv"
}

// Path returns where the CSV for imageName is written.
func (w *CSVWriter) Path(imageName string) string {
	return filepath.Join(w.Dir, FileName(imageName))
}

// Name identifies the sink in logs.
func (w *CSVWriter) Name() string { return "csv" }

// Save writes the rows of ext, replacing any earlier file for the same image.
// The file is written under a temporary name and renamed into place, so
// concurrent saves for the same name leave one complete file (the last one
// renamed wins). Extractions without rows are skipped.
func (w *CSVWriter) Save(_ context.Context, ext models.Extraction) error {
	if len(ext.Rows) == 0 {
		return nil
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	path := w.Path(ext.ImageName)
	f, err := os.CreateTemp(w.Dir, "."+FileName(ext.ImageName)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range ext.Rows {
		if err := cw.Write([]string{r.Category, r.IssuedDate, r.ExpiryDate}); err != nil {
			return fmt.Errorf("write row %s: %w", r.Category, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ReadCSV loads rows previously written by Save.
func ReadCSV(path string) ([]models.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]models.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(Header) {
			return nil, fmt.Errorf("read %s: expected %d columns, got %d", path, len(Header), len(rec))
		}
		rows = append(rows, models.Row{Category: rec[0], IssuedDate: rec[1], ExpiryDate: rec[2]})
	}
	return rows, nil
}

// ReadDir loads the CSV files saved in dir, most recently written first.
// A non-empty image keeps only the file that image was saved to. A limit of
// zero or less returns every file. The CSV carries no status or orientation,
// so ImageName is the file name and Status is left empty.
func ReadDir(dir, image string, limit int) ([]models.Extraction, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read output directory %s: %w", dir, err)
	}

	type saved struct {
		name    string
		modTime int64
	}
	var files []saved
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		if image != "" && e.Name() != FileName(image) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, saved{name: e.Name(), modTime: info.ModTime().UnixNano()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].modTime != files[j].modTime {
			return files[i].modTime > files[j].modTime
		}
		return files[i].name < files[j].name
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	out := make([]models.Extraction, 0, len(files))
	for _, f := range files {
		rows, err := ReadCSV(filepath.Join(dir, f.name))
		if err != nil {
			return nil, err
		}
		out = append(out, models.Extraction{ImageName: f.name, Rows: rows})
	}
	return out, nil
}
