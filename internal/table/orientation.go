// Package table rebuilds the category/date table of a licence from unordered
// OCR fields: it infers the layout orientation, fills in categories the OCR
// missed, splits dates into issued and expiry columns, pairs them and assigns
// each pair to a category row.
package table

import (
	"sort"

	"licensetable/internal/fields"
	"licensetable/internal/geometry"
	"licensetable/pkg/models"
)

// CenterPoints converts validated fields into labelled center points.
func CenterPoints(candidates []fields.Candidate) []models.CenterPoint {
	out := make([]models.CenterPoint, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, geometry.CenterPoint(c.Text, c.Box))
	}
	return out
}

// SortByCategory orders points by canonical category index. Labels outside the
// vocabulary go last, keeping their relative order.
func SortByCategory(points []models.CenterPoint, vocab models.Vocabulary) []models.CenterPoint {
	sorted := append([]models.CenterPoint(nil), points...)
	rank := func(label string) int {
		if i, ok := vocab.Index(label); ok {
			return i
		}
		return len(vocab.Sort)
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		return rank(sorted[a].Label) < rank(sorted[b].Label)
	})
	return sorted
}

// FindOrientation compares the total x and y travel of the categories taken in
// canonical order. More x travel than y travel is reported as portrait,
// anything else (ties included) as landscape. The sorted centers are returned
// for the later stages.
func FindOrientation(categories []fields.Candidate, vocab models.Vocabulary) (models.Orientation, []models.CenterPoint) {
	sorted := SortByCategory(CenterPoints(categories), vocab)

	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	for i, p := range sorted {
		xs[i] = p.X
		ys[i] = p.Y
	}

	if geometry.AdjacentDifferenceSum(xs) > geometry.AdjacentDifferenceSum(ys) {
		return models.Portrait, sorted
	}
	return models.Landscape, sorted
}

// crossAxis is the axis the date columns are split along: x for landscape, y for portrait.
func crossAxis(o models.Orientation) int {
	if o == models.Landscape {
		return 0
	}
	return 1
}

// rowAxis is the axis rows advance along: y for landscape, x for portrait.
func rowAxis(o models.Orientation) int {
	if o == models.Landscape {
		return 1
	}
	return 0
}
