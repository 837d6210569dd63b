package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensetable/internal/fields"
	"licensetable/pkg/models"
)

func cp(label string, x, y float64) models.CenterPoint {
	return models.CenterPoint{Label: label, X: x, Y: y}
}

// box returns a 10x10 box centered on (x, y).
func box(x, y float64) models.BoundingBox {
	return models.RectBox(x-5, y-5, x+5, y+5)
}

func labels(points []models.CenterPoint) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		out = append(out, p.Label)
	}
	return out
}

func abcd() models.Vocabulary {
	return models.Vocabulary{Sort: []string{"A", "B", "C", "D"}, Check: []string{"A", "B", "C", "D"}}
}

func TestFindOrientation(t *testing.T) {
	vocab := models.DefaultVocabulary()

	t.Run("categories stacked vertically", func(t *testing.T) {
		o, sorted := FindOrientation([]fields.Candidate{
			{Box: box(20, 310), Text: "C"},
			{Box: box(20, 100), Text: "AM"},
			{Box: box(22, 250), Text: "B"},
		}, vocab)
		assert.Equal(t, models.Landscape, o)
		assert.Equal(t, []string{"AM", "B", "C"}, labels(sorted))
	})

	t.Run("categories spread horizontally", func(t *testing.T) {
		o, _ := FindOrientation([]fields.Candidate{
			{Box: box(100, 20), Text: "AM"},
			{Box: box(250, 21), Text: "B"},
		}, vocab)
		assert.Equal(t, models.Portrait, o)
	})

	t.Run("equal travel is landscape", func(t *testing.T) {
		o, _ := FindOrientation([]fields.Candidate{
			{Box: box(0, 0), Text: "A"},
			{Box: box(10, 10), Text: "B"},
		}, vocab)
		assert.Equal(t, models.Landscape, o)
	})

	t.Run("empty input", func(t *testing.T) {
		o, sorted := FindOrientation(nil, vocab)
		assert.Equal(t, models.Landscape, o)
		assert.Empty(t, sorted)
	})
}

func TestSortByCategoryPutsUnknownLast(t *testing.T) {
	sorted := SortByCategory([]models.CenterPoint{cp("X", 0, 0), cp("C", 0, 0), cp("Y", 0, 0), cp("A", 0, 0)}, abcd())
	assert.Equal(t, []string{"A", "C", "X", "Y"}, labels(sorted))
}

func TestCompleteCategoriesExtrapolates(t *testing.T) {
	completed, err := CompleteCategories([]models.CenterPoint{cp("B", 10, 10), cp("C", 10, 30)}, abcd())
	require.NoError(t, err)

	assert.Equal(t, []models.CenterPoint{
		cp("A", 10, -10),
		cp("B", 10, 10),
		cp("C", 10, 30),
		cp("D", 10, 50),
	}, completed)
}

func TestCompleteCategoriesInterpolatesGaps(t *testing.T) {
	completed, err := CompleteCategories([]models.CenterPoint{cp("D", 40, 7), cp("A", 10, 1)}, abcd())
	require.NoError(t, err)
	assert.Equal(t, cp("B", 20, 3), completed[1])
	assert.Equal(t, cp("C", 30, 5), completed[2])
}

func TestCompleteCategoriesIsIdempotentOnFullInput(t *testing.T) {
	vocab := models.DefaultVocabulary()
	var full []models.CenterPoint
	for i, label := range vocab.Sort {
		full = append(full, cp(label, 20.5+float64(i%3), 100+31.5*float64(i)))
	}

	completed, err := CompleteCategories(full, vocab)
	require.NoError(t, err)
	assert.Equal(t, full, completed)
	assert.Len(t, completed, vocab.Len())
}

func TestCompleteCategoriesErrors(t *testing.T) {
	_, err := CompleteCategories([]models.CenterPoint{cp("B", 1, 1), cp("B", 2, 2)}, abcd())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInterpolation))

	_, err = CompleteCategories([]models.CenterPoint{cp("B", 1, 1), cp("Z", 2, 2)}, abcd())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInterpolation))
}

func TestDeduplicateCategories(t *testing.T) {
	points := []models.CenterPoint{
		cp("A", 20, 100),
		cp("B", 80, 130),
		cp("C", 22, 160),
		cp("B", 21, 131),
	}
	out := DeduplicateCategories(points, 0)
	assert.Equal(t, []models.CenterPoint{cp("A", 20, 100), cp("B", 21, 131), cp("C", 22, 160)}, out)

	onlyDuplicates := []models.CenterPoint{cp("A", 5, 0), cp("A", 9, 0)}
	assert.Equal(t, []models.CenterPoint{cp("A", 5, 0)}, DeduplicateCategories(onlyDuplicates, 0))
}

func TestCategorizeDatesLandscape(t *testing.T) {
	dates := []models.CenterPoint{cp("i1", 200, 100), cp("e1", 300, 100), cp("i2", 200, 130), cp("e2", 300, 130)}
	center := DatesCenter(dates, models.Landscape)
	assert.Equal(t, 250.0, center)

	issued, expiry := CategorizeDates(dates, center, models.Landscape, 1)
	assert.Equal(t, []string{"i1", "i2"}, labels(issued))
	assert.Equal(t, []string{"e1", "e2"}, labels(expiry))

	issued, expiry = CategorizeDates(dates, center, models.Landscape, 0)
	assert.Equal(t, []string{"e1", "e2"}, labels(issued))
	assert.Equal(t, []string{"i1", "i2"}, labels(expiry))
}

func TestBias(t *testing.T) {
	increasing := []models.CenterPoint{cp("A", 0, 0), cp("B", 10, 10)}
	decreasing := []models.CenterPoint{cp("A", 10, 10), cp("B", 0, 0)}

	assert.Equal(t, 1, Bias(increasing, models.Landscape))
	assert.Equal(t, 1, Bias(increasing, models.Portrait))
	assert.Equal(t, 0, Bias(decreasing, models.Landscape))
	assert.Equal(t, 0, Bias(decreasing, models.Portrait))
}

func TestPairDatesIsSymmetric(t *testing.T) {
	issued := []models.CenterPoint{cp("i1", 200, 100), cp("i2", 200, 130), cp("i3", 200, 160)}
	expiry := []models.CenterPoint{cp("e1", 300, 101), cp("e3", 300, 161)}
	all := []models.CenterPoint{issued[0], expiry[0], issued[1], issued[2], expiry[1]}

	pairs, unmatched := PairDates(all, issued, expiry, models.Landscape)

	require.Len(t, pairs, 2)
	assert.Equal(t, "i1", pairs[0].Issued.Label)
	assert.Equal(t, "e1", pairs[0].Expiry.Label)
	assert.Equal(t, "i3", pairs[1].Issued.Label)
	assert.Equal(t, "e3", pairs[1].Expiry.Label)
	assert.Equal(t, []string{"i2"}, labels(unmatched))

	seen := map[string]bool{}
	for _, p := range pairs {
		assert.False(t, seen[p.Issued.Label])
		assert.False(t, seen[p.Expiry.Label])
		seen[p.Issued.Label] = true
		seen[p.Expiry.Label] = true
	}
	assert.Equal(t, len(all), len(seen)+len(unmatched))
}

func TestPairDatesRejectsOneSidedNearest(t *testing.T) {
	// both issued dates are closest to e1, e1 is closest to i2
	issued := []models.CenterPoint{cp("i1", 200, 100), cp("i2", 200, 118)}
	expiry := []models.CenterPoint{cp("e1", 300, 120)}
	all := append(append([]models.CenterPoint{}, issued...), expiry...)

	pairs, unmatched := PairDates(all, issued, expiry, models.Landscape)
	require.Len(t, pairs, 1)
	assert.Equal(t, "i2", pairs[0].Issued.Label)
	assert.Equal(t, []string{"i1"}, labels(unmatched))
}

func TestPairDatesWithEmptyColumn(t *testing.T) {
	all := []models.CenterPoint{cp("a", 10, 10), cp("b", 10, 20)}
	pairs, unmatched := PairDates(all, nil, all, models.Landscape)
	assert.Empty(t, pairs)
	assert.Equal(t, all, unmatched)
}

func TestApproxCategoryPosition(t *testing.T) {
	pair := models.DatePair{Issued: cp("i", 130, 300), Expiry: cp("e", 150, 200)}

	pos, axis := ApproxCategoryPosition(pair, models.Portrait)
	assert.Equal(t, 0, axis)
	assert.Equal(t, 110.0, pos)

	pos, axis = ApproxCategoryPosition(pair, models.Landscape)
	assert.Equal(t, 1, axis)
	assert.Equal(t, 400.0, pos)
}

func landscapeCategories() []models.CenterPoint {
	return []models.CenterPoint{cp("AM", 20, 100), cp("B", 20, 250), cp("C", 20, 310)}
}

func TestIdentifyRowsLandscape(t *testing.T) {
	dates := []models.CenterPoint{
		cp("01.01.2010", 200, 100),
		cp("01.01.2030", 300, 100),
		cp("02.02.2012", 200, 250),
		cp("02.02.2032", 300, 250),
	}

	res, err := IdentifyRows(dates, models.Landscape, landscapeCategories(), models.DefaultVocabulary())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, res.Status)
	assert.Equal(t, []models.Row{
		{Category: "AM", IssuedDate: "01.01.2010", ExpiryDate: "01.01.2030"},
		{Category: "B", IssuedDate: "02.02.2012", ExpiryDate: "02.02.2032"},
	}, res.Rows)
	assert.Empty(t, res.Unmatched)
}

func TestIdentifyRowsPortrait(t *testing.T) {
	categories := []models.CenterPoint{cp("A1", 130, 20), cp("B", 250, 20)}
	dates := []models.CenterPoint{
		cp("09.09.2039", 130, 200),
		cp("01.01.2019", 130, 300),
		cp("08.08.2038", 250, 200),
		cp("02.02.2018", 250, 300),
	}

	res, err := IdentifyRows(dates, models.Portrait, categories, models.DefaultVocabulary())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, res.Status)
	assert.Equal(t, []models.Row{
		{Category: "A1", IssuedDate: "01.01.2019", ExpiryDate: "09.09.2039"},
		{Category: "B", IssuedDate: "02.02.2018", ExpiryDate: "08.08.2038"},
	}, res.Rows)
}

func TestIdentifyRowsReportsMissingRows(t *testing.T) {
	dates := []models.CenterPoint{
		cp("01.01.2010", 200, 100),
		cp("01.01.2030", 300, 100),
		cp("02.02.2012", 200, 250),
		cp("02.02.2032", 300, 250),
		cp("03.03.2013", 210, 400),
	}

	res, err := IdentifyRows(dates, models.Landscape, landscapeCategories(), models.DefaultVocabulary())
	require.NoError(t, err)

	assert.Equal(t, models.StatusRowsMissing, res.Status)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, []string{"03.03.2013"}, labels(res.Unmatched))
}

func TestIdentifyRowsCollisionKeepsLastPair(t *testing.T) {
	dates := []models.CenterPoint{
		cp("first-issued", 200, 100),
		cp("first-expiry", 300, 100),
		cp("second-issued", 200, 105),
		cp("second-expiry", 300, 105),
	}

	res, err := IdentifyRows(dates, models.Landscape, landscapeCategories(), models.DefaultVocabulary())
	require.NoError(t, err)

	assert.Equal(t, models.StatusRowsMissing, res.Status)
	assert.Len(t, res.Pairs, 2)
	assert.Equal(t, []models.Row{{Category: "AM", IssuedDate: "second-issued", ExpiryDate: "second-expiry"}}, res.Rows)
}

func TestIdentifyRowsSoftFailures(t *testing.T) {
	vocab := models.DefaultVocabulary()
	dates := []models.CenterPoint{cp("01.01.2010", 200, 100), cp("01.01.2030", 300, 100)}

	res, err := IdentifyRows(dates, models.Landscape, []models.CenterPoint{cp("B", 20, 250)}, vocab)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCategoriesMissing, res.Status)
	assert.Empty(t, res.Rows)

	res, err = IdentifyRows(dates[:1], models.Landscape, landscapeCategories(), vocab)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDatesMissing, res.Status)
	assert.Empty(t, res.Rows)

	sameColumn := []models.CenterPoint{cp("01.01.2010", 200, 100), cp("01.01.2030", 200, 250)}
	res, err = IdentifyRows(sameColumn, models.Landscape, landscapeCategories(), vocab)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDatesMissing, res.Status)
	assert.Len(t, res.Unmatched, 2)
}

func TestIdentifyRowsWrapsCompletionFailure(t *testing.T) {
	dates := []models.CenterPoint{cp("01.01.2010", 200, 100), cp("01.01.2030", 300, 100)}
	categories := []models.CenterPoint{cp("B", 20, 250), cp("B", 20, 251)}

	_, err := IdentifyRows(dates, models.Landscape, categories, models.DefaultVocabulary())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProcessing))
	assert.True(t, errors.Is(err, ErrInterpolation))
}
