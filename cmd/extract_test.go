package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensetable/internal/ocr"
	"licensetable/internal/pipeline"
	"licensetable/pkg/models"
)

func TestValidateImageFile(t *testing.T) {
	dir := t.TempDir()
	log := zerolog.Nop()

	err := validateImageFile(filepath.Join(dir, "missing.jpg"), log)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrImageNotFound))

	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	assert.ErrorContains(t, validateImageFile(empty, log), "empty")

	assert.ErrorContains(t, validateImageFile(dir, log), "not a regular file")

	ok := filepath.Join(dir, "licence.jpg")
	require.NoError(t, os.WriteFile(ok, []byte{0xff, 0xd8}, 0644))
	assert.NoError(t, validateImageFile(ok, log))
}

func TestHandleExtractError(t *testing.T) {
	log := zerolog.Nop()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", context.DeadlineExceeded, "timed out"},
		{"canceled", context.Canceled, "canceled"},
		{"credentials", ocr.NewOCRError("New", ocr.ErrMissingCredentials, ""), "credentials not configured"},
		{"unknown engine", ocr.NewOCRError("New", ocr.ErrUnknownEngine, "abacus"), "unknown OCR engine"},
		{"model load", &pipeline.PipelineError{Op: "Load", Err: pipeline.ErrModelLoad}, "could not load"},
		{"quota", errors.New("rpc error: QUOTA_EXCEEDED"), "quota exceeded"},
		{"other", errors.New("boom"), "extraction failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, handleExtractError(tt.err, log), tt.want)
		})
	}
}

func TestFormatText(t *testing.T) {
	out := ExtractOutput{Extraction: models.Extraction{
		Status: models.StatusRowsMissing,
		Rows:   []models.Row{{Category: "B", IssuedDate: "01.01.2010", ExpiryDate: "01.01.2030"}},
	}, CSVFile: "output/front.csv"}

	text := formatText(out)
	assert.Contains(t, text, "Some rows are missing in the result.\n")
	assert.Contains(t, text, "B          01.01.2010   01.01.2030")
	assert.Contains(t, text, "Saved to output/front.csv")

	assert.Equal(t, "No output from OCR.\n", formatText(ExtractOutput{Extraction: models.Extraction{Status: models.StatusNoOCROutput}}))
}
