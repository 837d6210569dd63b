// Package geometry holds the coordinate helpers shared by the table
// reconstruction: box centers, adjacent-difference sums and a 1-D
// piecewise-linear interpolant that extrapolates past its samples.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"licensetable/pkg/models"
)

// ErrTooFewSamples is returned when an interpolant is requested with fewer
// than two distinct sample positions.
var ErrTooFewSamples = errors.New("at least two distinct samples are required")

// Center returns the midpoint of the box's min/max extents. It depends only on
// the extents, so the order of the corner points does not matter.
func Center(box models.BoundingBox) (x, y float64) {
	if len(box) == 0 {
		return 0, 0
	}
	minX, maxX := box[0].X, box[0].X
	minY, maxY := box[0].Y, box[0].Y
	for _, p := range box[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return (minX + maxX) / 2, (minY + maxY) / 2
}

// CenterPoint labels the center of box.
func CenterPoint(label string, box models.BoundingBox) models.CenterPoint {
	x, y := Center(box)
	return models.CenterPoint{Label: label, X: x, Y: y}
}

// AdjacentDifferenceSum returns the total of |v[i+1]-v[i]|. Empty and
// single-element inputs sum to zero.
func AdjacentDifferenceSum(values []float64) float64 {
	total := 0.0
	for i := 0; i+1 < len(values); i++ {
		total += math.Abs(values[i+1] - values[i])
	}
	return total
}

// Round2 rounds to two decimal places. Rounding works on the exact binary
// value and breaks exact ties to even, so 0.125 becomes 0.12 and 2.675
// (stored as 2.67499...) becomes 2.67.
func Round2(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// Linear is a piecewise-linear function through a set of samples. Outside the
// sampled range it continues the slope of the two nearest boundary samples.
type Linear struct {
	xs []float64
	ys []float64
}

// NewLinear builds an interpolant from paired samples. Samples need not be
// sorted; xs must be distinct.
func NewLinear(xs, ys []float64) (*Linear, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("sample length mismatch: %d positions, %d values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewSamples, len(xs))
	}

	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	l := &Linear{xs: make([]float64, len(xs)), ys: make([]float64, len(ys))}
	for i, j := range idx {
		l.xs[i] = xs[j]
		l.ys[i] = ys[j]
	}
	for i := 1; i < len(l.xs); i++ {
		if l.xs[i] == l.xs[i-1] {
			return nil, fmt.Errorf("duplicate sample position %v", l.xs[i])
		}
	}
	return l, nil
}

// At evaluates the interpolant at x.
func (l *Linear) At(x float64) float64 {
	n := len(l.xs)
	// segment i spans xs[i-1]..xs[i]; clamp to the outer segments for extrapolation
	i := sort.SearchFloat64s(l.xs, x)
	if i < n && l.xs[i] == x {
		return l.ys[i]
	}
	if i < 1 {
		i = 1
	}
	if i > n-1 {
		i = n - 1
	}
	x0, x1 := l.xs[i-1], l.xs[i]
	y0, y1 := l.ys[i-1], l.ys[i]
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}
