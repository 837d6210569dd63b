package table

import (
	"fmt"
	"math"

	"licensetable/internal/geometry"
	"licensetable/pkg/models"
)

// CompleteCategories returns one center per canonical category, in canonical
// order. Positions of unobserved categories are interpolated (or extrapolated)
// linearly over the canonical index, separately for x and y, and rounded to
// two decimals. When a label is observed more than once the last observation
// is used; callers that want a better pick run DeduplicateCategories first.
func CompleteCategories(observed []models.CenterPoint, vocab models.Vocabulary) ([]models.CenterPoint, error) {
	const op = "CompleteCategories"

	byIndex := make(map[int]models.CenterPoint, len(observed))
	var order []int
	for _, p := range observed {
		idx, ok := vocab.Index(p.Label)
		if !ok {
			return nil, NewProcessingError(op, ErrInterpolation, fmt.Sprintf("unknown category %q", p.Label))
		}
		if _, seen := byIndex[idx]; !seen {
			order = append(order, idx)
		}
		byIndex[idx] = p
	}

	known := make([]float64, 0, len(order))
	knownX := make([]float64, 0, len(order))
	knownY := make([]float64, 0, len(order))
	for _, idx := range order {
		known = append(known, float64(idx))
		knownX = append(knownX, byIndex[idx].X)
		knownY = append(knownY, byIndex[idx].Y)
	}

	fitX, err := geometry.NewLinear(known, knownX)
	if err != nil {
		return nil, NewProcessingError(op, fmt.Errorf("%w: %v", ErrInterpolation, err), "x axis")
	}
	fitY, err := geometry.NewLinear(known, knownY)
	if err != nil {
		return nil, NewProcessingError(op, fmt.Errorf("%w: %v", ErrInterpolation, err), "y axis")
	}

	full := make([]models.CenterPoint, 0, vocab.Len())
	for i, label := range vocab.Sort {
		full = append(full, models.CenterPoint{
			Label: label,
			X:     geometry.Round2(fitX.At(float64(i))),
			Y:     geometry.Round2(fitY.At(float64(i))),
		})
	}
	return full, nil
}

// DeduplicateCategories keeps a single observation per label. For a repeated
// label the observation whose coordinate on axis lies closest to the mean of
// the singly-observed labels wins; ties, and the case where no label was seen
// only once, keep the earliest observation. Labels keep their first-seen order.
func DeduplicateCategories(points []models.CenterPoint, axis int) []models.CenterPoint {
	groups := make(map[string][]models.CenterPoint)
	var labels []string
	for _, p := range points {
		if _, ok := groups[p.Label]; !ok {
			labels = append(labels, p.Label)
		}
		groups[p.Label] = append(groups[p.Label], p)
	}

	var sum float64
	var n int
	for _, label := range labels {
		if g := groups[label]; len(g) == 1 {
			sum += g[0].Coord(axis)
			n++
		}
	}

	out := make([]models.CenterPoint, 0, len(labels))
	for _, label := range labels {
		g := groups[label]
		if len(g) == 1 || n == 0 {
			out = append(out, g[0])
			continue
		}
		mean := sum / float64(n)
		best := g[0]
		for _, p := range g[1:] {
			if math.Abs(p.Coord(axis)-mean) < math.Abs(best.Coord(axis)-mean) {
				best = p
			}
		}
		out = append(out, best)
	}
	return out
}
