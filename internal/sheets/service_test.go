package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"licensetable/pkg/models"
)

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_E2/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_E2", id)

	_, err = extractSpreadsheetID("https://example.com/not-a-sheet")
	assert.Error(t, err)
}

func sampleExtraction() models.Extraction {
	return models.Extraction{
		ImageName:   "licence.jpg",
		Status:      models.StatusRowsMissing,
		Orientation: models.Landscape,
		Rows: []models.Row{
			{Category: "AM", IssuedDate: "01.01.2010", ExpiryDate: "01.01.2030"},
			{Category: "B", IssuedDate: "02.02.2012", ExpiryDate: "02.02.2032"},
		},
	}
}

func TestRowsToValues(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	values := rowsToValues(sampleExtraction(), at)

	require.Len(t, values, 2)
	assert.Equal(t, []interface{}{
		"licence.jpg", "B", "02.02.2012", "02.02.2032",
		"Some rows are missing in the result.", "landscape", "05.03.2024 14:07:09",
	}, values[1])
	assert.Len(t, values[0], len(Headers))
}

// fakeSheets serves the subset of the Sheets v4 API the service uses.
type fakeSheets struct {
	mu       sync.Mutex
	appended [][]interface{}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, ":append"):
		var vr sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.appended = append(f.appended, vr.Values...)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})
	case strings.Contains(r.URL.Path, "/values/"):
		_ = json.NewEncoder(w).Encode(map[string]any{
			"values": [][]string{
				{"Image", "Vehicle Category"},
				{"old.jpg", "B", "01.01.2001", "01.01.2021"},
			},
		})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet-1",
			"sheets": []map[string]any{
				{"properties": map[string]any{"title": DefaultWorksheet, "sheetId": 7}},
			},
		})
	}
}

func newTestService(t *testing.T, fake *fakeSheets) *Service {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewSheetsServiceWithClient(svc, "sheet-1", "")
}

func TestSaveAppendsRows(t *testing.T) {
	fake := &fakeSheets{}
	s := newTestService(t, fake)

	require.NoError(t, s.Save(context.Background(), sampleExtraction()))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.appended, 2)
	assert.Equal(t, "AM", fake.appended[0][1])
	assert.Equal(t, "02.02.2032", fake.appended[1][3])
}

func TestSaveSkipsEmptyExtraction(t *testing.T) {
	fake := &fakeSheets{}
	s := newTestService(t, fake)

	require.NoError(t, s.Save(context.Background(), models.Extraction{ImageName: "x.jpg", Status: models.StatusDatesMissing}))
	assert.Empty(t, fake.appended)
}

func TestReadRowsSkipsHeader(t *testing.T) {
	s := newTestService(t, &fakeSheets{})

	rows, err := s.ReadRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "old.jpg", rows[0][0])
}
