package table

import (
	"fmt"

	"licensetable/pkg/models"
)

const opIdentifyRows = "IdentifyRows"

// ApproxCategoryPosition estimates where the category label of a date pair
// sits on the row axis: one pair-spacing before the issued date.
func ApproxCategoryPosition(pair models.DatePair, o models.Orientation) (float64, int) {
	axis := rowAxis(o)
	difference := pair.Expiry.Coord(axis) - pair.Issued.Coord(axis)
	return pair.Issued.Coord(axis) - difference, axis
}

// AssignRows maps every pair to the completed category closest to its
// estimated label position. When two pairs land on the same category the
// later pair overwrites the earlier one.
func AssignRows(completed []models.CenterPoint, pairs []models.DatePair, o models.Orientation) map[string]models.Row {
	rows := make(map[string]models.Row, len(pairs))
	if len(completed) == 0 {
		return rows
	}
	for _, pair := range pairs {
		pos, axis := ApproxCategoryPosition(pair, o)
		closest := completed[nearest(completed, pos, axis)]
		rows[closest.Label] = models.Row{
			Category:   closest.Label,
			IssuedDate: pair.Issued.Label,
			ExpiryDate: pair.Expiry.Label,
		}
	}
	return rows
}

// OrderRows lists rows in canonical category order.
func OrderRows(rows map[string]models.Row, vocab models.Vocabulary) []models.Row {
	ordered := make([]models.Row, 0, len(rows))
	for _, label := range vocab.Sort {
		if r, ok := rows[label]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered
}

// Result is the outcome of row identification.
type Result struct {
	Status    models.Status
	Rows      []models.Row
	Pairs     []models.DatePair
	Unmatched []models.CenterPoint
}

// IdentifyRows rebuilds the table rows from the date fields and the sorted
// category centers produced by FindOrientation.
//
// Too few categories or dates, or no date pair at all, are reported through
// the status with no rows. Any failure inside the reconstruction is returned
// as an error matching ErrProcessing.
func IdentifyRows(dates []models.CenterPoint, o models.Orientation, categories []models.CenterPoint, vocab models.Vocabulary) (Result, error) {
	if len(categories) <= 1 {
		return Result{Status: models.StatusCategoriesMissing}, nil
	}
	if len(dates) <= 1 {
		return Result{Status: models.StatusDatesMissing}, nil
	}

	deduped := DeduplicateCategories(categories, crossAxis(o))
	completed, err := CompleteCategories(deduped, vocab)
	if err != nil {
		return Result{}, NewProcessingError(opIdentifyRows, fmt.Errorf("%w: %w", ErrProcessing, err), "")
	}

	center := DatesCenter(dates, o)
	bias := Bias(completed, o)
	issued, expiry := CategorizeDates(dates, center, o, bias)
	pairs, unmatched := PairDates(dates, issued, expiry, o)

	if len(pairs) == 0 {
		return Result{Status: models.StatusDatesMissing, Unmatched: unmatched}, nil
	}

	rows := OrderRows(AssignRows(completed, pairs, o), vocab)

	status := models.StatusRowsMissing
	if len(rows) == len(pairs) && len(unmatched) == 0 {
		status = models.StatusSuccess
	}
	return Result{Status: status, Rows: rows, Pairs: pairs, Unmatched: unmatched}, nil
}
